package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"medilink/internal/client/api"
	"medilink/internal/shared/models"
)

func newDoctorsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "doctors", Short: "Browse and administer doctors"}

	list := &cobra.Command{Use: "list", Short: "List doctors", RunE: func(c *cobra.Command, _ []string) error {
		if err := a.ensure(); err != nil {
			return err
		}
		spec, _ := c.Flags().GetString("specialization")
		popular, _ := c.Flags().GetBool("popular")
		var (
			docs []models.Doctor
			err  error
		)
		if popular {
			docs, err = a.api.PopularDoctors(c.Context(), spec)
		} else {
			docs, err = a.api.Doctors(c.Context(), spec)
		}
		if err != nil {
			return err
		}
		return printJSON(c, docs)
	}}
	list.Flags().String("specialization", "", "Filter by specialization")
	list.Flags().Bool("popular", false, "Rank by rating")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{Use: "search", Short: "Search doctors by name or specialization", Args: cobra.ExactArgs(1), RunE: func(c *cobra.Command, args []string) error {
		if err := a.ensure(); err != nil {
			return err
		}
		docs, err := a.api.SearchDoctors(c.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(c, docs)
	}})

	admin := &cobra.Command{Use: "admin", Short: "Admin-only doctor management"}

	create := &cobra.Command{Use: "create", Short: "Create a doctor account", RunE: func(c *cobra.Command, _ []string) error {
		return createDoctor(a, c)
	}}
	create.Flags().String("email", "", "Doctor email")
	create.Flags().String("first-name", "", "First name")
	create.Flags().String("last-name", "", "Last name")
	create.Flags().String("specialization", "", "Specialization")
	_ = create.MarkFlagRequired("email")
	admin.AddCommand(create)

	admin.AddCommand(&cobra.Command{Use: "get", Short: "Show one doctor", Args: cobra.ExactArgs(1), RunE: func(c *cobra.Command, args []string) error {
		if err := a.ensure(); err != nil {
			return err
		}
		doc, err := a.api.AdminDoctor(c.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(c, doc)
	}})

	update := &cobra.Command{Use: "update", Short: "Update a doctor's profile", Args: cobra.ExactArgs(1), RunE: func(c *cobra.Command, args []string) error {
		return updateDoctor(a, c, args[0])
	}}
	update.Flags().String("email", "", "Doctor email")
	update.Flags().String("first-name", "", "First name")
	update.Flags().String("last-name", "", "Last name")
	update.Flags().String("specialization", "", "Specialization")
	admin.AddCommand(update)

	admin.AddCommand(&cobra.Command{Use: "delete", Short: "Delete a doctor", Args: cobra.ExactArgs(1), RunE: func(c *cobra.Command, args []string) error {
		if err := a.ensure(); err != nil {
			return err
		}
		if err := a.api.DeleteDoctor(c.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintln(c.OutOrStdout(), "Deleted")
		return nil
	}})

	cmd.AddCommand(admin)
	return cmd
}

func createDoctor(a *app, c *cobra.Command) error {
	if err := a.ensure(); err != nil {
		return err
	}
	email, _ := c.Flags().GetString("email")
	first, _ := c.Flags().GetString("first-name")
	last, _ := c.Flags().GetString("last-name")
	spec, _ := c.Flags().GetString("specialization")

	password, err := promptPassword(c, "Initial password: ")
	if err != nil {
		return err
	}
	doc, err := a.api.CreateDoctor(c.Context(), api.DoctorUpsert{
		Email:    email,
		Password: string(password),
		Profile: models.DoctorProfile{
			Profile:        models.Profile{FirstName: first, LastName: last},
			Specialization: spec,
		},
	})
	if err != nil {
		return err
	}
	return printJSON(c, doc)
}

func updateDoctor(a *app, c *cobra.Command, id string) error {
	if err := a.ensure(); err != nil {
		return err
	}
	email, _ := c.Flags().GetString("email")
	first, _ := c.Flags().GetString("first-name")
	last, _ := c.Flags().GetString("last-name")
	spec, _ := c.Flags().GetString("specialization")

	err := a.api.UpdateDoctor(c.Context(), id, api.DoctorUpsert{
		Email: email,
		Profile: models.DoctorProfile{
			Profile:        models.Profile{FirstName: first, LastName: last},
			Specialization: spec,
		},
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.OutOrStdout(), "Updated")
	return nil
}
