package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"medilink/internal/client/api"
	"medilink/internal/client/autherr"
)

func newAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "auth", Short: "Sign in, register and manage the session"}
	cmd.AddCommand(&cobra.Command{Use: "login", Short: "Sign in with email and password", RunE: func(c *cobra.Command, _ []string) error {
		return login(a, c)
	}})
	cmd.AddCommand(&cobra.Command{Use: "register", Short: "Create a patient account", RunE: func(c *cobra.Command, _ []string) error {
		return register(a, c)
	}})
	cmd.AddCommand(&cobra.Command{Use: "google", Short: "Sign in with Google", RunE: func(c *cobra.Command, _ []string) error {
		return googleLogin(a, c)
	}})
	cmd.AddCommand(&cobra.Command{Use: "logout", Short: "Sign out and clear the stored session", RunE: func(c *cobra.Command, _ []string) error {
		return logout(a, c)
	}})
	cmd.AddCommand(&cobra.Command{Use: "whoami", Short: "Show the signed-in identity", RunE: func(c *cobra.Command, _ []string) error {
		return whoami(a, c)
	}})
	cmd.AddCommand(&cobra.Command{Use: "forgot-password", Short: "Start the password reset flow", RunE: func(c *cobra.Command, _ []string) error {
		return forgotPassword(a, c)
	}})
	cmd.AddCommand(&cobra.Command{Use: "reset-password", Short: "Finish the password reset with the emailed code", RunE: func(c *cobra.Command, _ []string) error {
		return resetPassword(a, c)
	}})
	return cmd
}

func login(a *app, cmd *cobra.Command) error {
	if err := a.ensure(); err != nil {
		return err
	}
	email := promptLine(cmd, "Email: ")
	password, err := promptPassword(cmd, "Password: ")
	if err != nil {
		return err
	}
	id, err := a.session.Login(cmd.Context(), email, string(password))
	if err != nil {
		return fmt.Errorf("%s", autherr.UserMessage(err, "Sign-in failed. Please try again."))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", id.Email, id.Role)
	return nil
}

func register(a *app, cmd *cobra.Command) error {
	if err := a.ensure(); err != nil {
		return err
	}
	reg := api.Registration{
		FirstName: promptLine(cmd, "First name: "),
		LastName:  promptLine(cmd, "Last name: "),
		Email:     promptLine(cmd, "Email: "),
		Phone:     promptLine(cmd, "Phone (optional): "),
		Address:   promptLine(cmd, "Address (optional): "),
	}
	password, err := promptPassword(cmd, "Password: ")
	if err != nil {
		return err
	}
	reg.Password = string(password)

	id, err := a.session.RegisterPatient(cmd.Context(), reg)
	if err != nil {
		return fmt.Errorf("%s", autherr.UserMessage(err, "Registration failed. Please try again."))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered and signed in as %s\n", id.Email)
	return nil
}

func googleLogin(a *app, cmd *cobra.Command) error {
	if err := a.ensure(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Opening the browser to continue with Google...")
	id, err := a.session.SignInWithFederatedProvider(cmd.Context())
	if err != nil {
		return fmt.Errorf("%s", autherr.UserMessage(err, "Google sign-in failed. Please try again."))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", id.Email, id.Role)
	return nil
}

func logout(a *app, cmd *cobra.Command) error {
	if err := a.ensure(); err != nil {
		return err
	}
	if err := a.session.SignOut(cmd.Context()); err != nil {
		return fmt.Errorf("%s", autherr.UserMessage(err, "Failed to sign out."))
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
	return nil
}

func whoami(a *app, cmd *cobra.Command) error {
	if err := a.ensure(); err != nil {
		return err
	}
	id := a.session.CurrentIdentity()
	if id == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
		return nil
	}
	return printJSON(cmd, id)
}

func forgotPassword(a *app, cmd *cobra.Command) error {
	if err := a.ensure(); err != nil {
		return err
	}
	email := promptLine(cmd, "Email: ")
	if err := a.session.ForgotPassword(cmd.Context(), email); err != nil {
		return fmt.Errorf("%s", autherr.UserMessage(err, "Could not start the reset flow."))
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Check your email for the reset code, then run 'medilink auth reset-password'")
	return nil
}

func resetPassword(a *app, cmd *cobra.Command) error {
	if err := a.ensure(); err != nil {
		return err
	}
	email := promptLine(cmd, "Email: ")
	otp := promptLine(cmd, "Reset code: ")
	if err := a.session.VerifyOTP(cmd.Context(), email, otp); err != nil {
		return fmt.Errorf("%s", autherr.UserMessage(err, "The reset code was not accepted."))
	}
	password, err := promptPassword(cmd, "New password: ")
	if err != nil {
		return err
	}
	if err := a.session.ResetPassword(cmd.Context(), email, string(password)); err != nil {
		return fmt.Errorf("%s", autherr.UserMessage(err, "Could not reset the password."))
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Password updated; sign in with the new password")
	return nil
}

func promptLine(cmd *cobra.Command, prompt string) string {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptPassword(cmd *cobra.Command, prompt string) ([]byte, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pass, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		return pass, err
	}
	// piped input in tests and scripts
	return []byte(promptLine(cmd, "")), nil
}
