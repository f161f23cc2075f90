package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"hp-booking/internal/model"
	"hp-booking/pkg/client"
)

func loginCmd(opts *globalOptions) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, c, err := opts.session()
			if err != nil {
				return err
			}
			if password == "" {
				if password, err = readSecret("Password: "); err != nil {
					return err
				}
			}

			user, err := c.Login(cmd.Context(), email, password)
			if err != nil {
				return describe(err)
			}
			if err := file.Save(c.Token()); err != nil {
				return err
			}

			success("Signed in as %s (%s)", user.Name, user.Role)
			info("Home: %s", user.Role.HomePath())
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (prompted when empty)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func registerCmd(opts *globalOptions) *cobra.Command {
	var req model.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, c, err := opts.session()
			if err != nil {
				return err
			}
			if req.Password == "" {
				if req.Password, err = readSecret("Password: "); err != nil {
					return err
				}
			}

			result, err := c.Register(cmd.Context(), req)
			if err != nil {
				return describe(err)
			}
			if err := file.Save(c.Token()); err != nil {
				return err
			}

			success("Registered %s (%s)", result.User.Email, result.User.Role)
			info("Continue at %s", result.RedirectURL)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Name, "name", "n", "", "Full name")
	cmd.Flags().StringVarP(&req.Email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "Password, 6 to 72 characters (prompted when empty)")
	cmd.Flags().StringVar(&req.PhoneNumber, "phone", "", "Phone number, 10 to 15 digits")
	cmd.Flags().StringVar(&req.Role, "role", "USER", "USER or ADMIN")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("phone")

	return cmd
}

func meCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, c, err := opts.session()
			if err != nil {
				return err
			}

			user, err := c.Me(cmd.Context())
			if errors.Is(err, client.ErrNotAuthenticated) {
				_ = file.Remove()
				return errors.New("not signed in, run: bookingctl login")
			}
			if err != nil {
				return describe(err)
			}

			fmt.Printf("  ID:     %s\n", user.ID)
			fmt.Printf("  Name:   %s\n", user.Name)
			fmt.Printf("  Email:  %s\n", user.Email)
			fmt.Printf("  Phone:  %s\n", user.PhoneNumber)
			fmt.Printf("  Role:   %s\n", user.Role)
			return nil
		},
	}
}

func logoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, c, err := opts.session()
			if err != nil {
				return err
			}

			logoutErr := c.Logout(cmd.Context())
			if err := file.Remove(); err != nil {
				return err
			}
			if logoutErr != nil {
				return describe(logoutErr)
			}

			success("Signed out")
			return nil
		},
	}
}

func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// describe turns an API error into a one-line message with field details.
func describe(err error) error {
	var apiErr *client.Error
	if !errors.As(err, &apiErr) || apiErr.Message == "" {
		return err
	}

	msg := apiErr.Message
	for field, reason := range apiErr.Fields {
		msg += fmt.Sprintf("\n  %s: %s", field, reason)
	}
	return errors.New(msg)
}
