package commands

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/colyze-dev/colyze/internal/cli/client"
)

// NewRegisterCmd creates the register command
func NewRegisterCmd() *cobra.Command {
	var req client.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account (reviewed by an administrator)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd, req)
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Full name")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.Username, "username", "", "Username")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password (will prompt if not provided)")
	cmd.Flags().StringVar(&req.PhoneNumber, "phone", "", "Phone number in E.164 format, e.g. +14155550100")
	cmd.Flags().StringVar(&req.LinkedIn, "linkedin", "", "LinkedIn profile URL")
	cmd.Flags().StringVar(&req.GitHub, "github", "", "GitHub profile URL")

	return cmd
}

// fieldValidator adapts a validator tag to a prompt check
func fieldValidator(tag string) func(string) error {
	return func(v string) error {
		if err := validate.Var(v, tag); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				return fmt.Errorf("must satisfy %s", verrs[0].Tag())
			}
			return err
		}
		return nil
	}
}

func runRegister(cmd *cobra.Command, req client.RegisterRequest) error {
	out := cmd.OutOrStdout()

	missing := req.Name == "" || req.Email == "" || req.Username == "" || req.Password == ""
	if missing && !isTerminal() {
		return fmt.Errorf("--name, --email, --username and --password are required in non-interactive mode")
	}

	prompts := []struct {
		label string
		tag   string
		dst   *string
	}{
		{"Name", "required", &req.Name},
		{"Email", "required,email", &req.Email},
		{"Username", "required,alphanumunicode,min=3,max=32", &req.Username},
	}
	for _, p := range prompts {
		if *p.dst != "" {
			continue
		}
		v, err := promptText(p.label, fieldValidator(p.tag))
		if err != nil {
			return err
		}
		*p.dst = v
	}
	if req.Password == "" {
		pw, err := readPassword(out, "Password")
		if err != nil {
			return err
		}
		req.Password = pw
	}

	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("invalid registration: %w", err)
	}

	a, ctx, cleanup, err := startApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := a.Client.Register(ctx, req); err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	fmt.Fprintf(out, "✓ Registered @%s\n", req.Username)
	fmt.Fprintln(out, "  An administrator will review your account before you can log in.")
	return nil
}
