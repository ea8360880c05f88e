package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"medilink/internal/client/api"
)

func newConsultationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "consultations", Short: "Record and read consultation outcomes"}

	create := &cobra.Command{Use: "create", Short: "Record a consultation (doctor)", RunE: func(c *cobra.Command, _ []string) error {
		return upsertConsultation(a, c, "")
	}}
	addConsultationFlags(create)
	_ = create.MarkFlagRequired("appointment")
	cmd.AddCommand(create)

	update := &cobra.Command{Use: "update", Short: "Amend a consultation (doctor)", Args: cobra.ExactArgs(1), RunE: func(c *cobra.Command, args []string) error {
		return upsertConsultation(a, c, args[0])
	}}
	addConsultationFlags(update)
	cmd.AddCommand(update)

	get := &cobra.Command{Use: "get", Short: "Show the consultation for an appointment", Args: cobra.ExactArgs(1), RunE: func(c *cobra.Command, args []string) error {
		if err := a.ensure(); err != nil {
			return err
		}
		mine, _ := c.Flags().GetBool("mine")
		var (
			res any
			err error
		)
		if mine {
			res, err = a.api.PatientConsultationByAppointment(c.Context(), args[0])
		} else {
			res, err = a.api.ConsultationByAppointment(c.Context(), args[0])
		}
		if err != nil {
			return err
		}
		return printJSON(c, res)
	}}
	get.Flags().Bool("mine", false, "Read through the patient endpoint")
	cmd.AddCommand(get)

	cmd.AddCommand(&cobra.Command{Use: "list", Short: "List my consultations (patient)", RunE: func(c *cobra.Command, _ []string) error {
		if err := a.ensure(); err != nil {
			return err
		}
		cons, err := a.api.PatientConsultations(c.Context())
		if err != nil {
			return err
		}
		return printJSON(c, cons)
	}})

	cmd.AddCommand(&cobra.Command{Use: "delete", Short: "Delete a consultation (doctor)", Args: cobra.ExactArgs(1), RunE: func(c *cobra.Command, args []string) error {
		if err := a.ensure(); err != nil {
			return err
		}
		if err := a.api.DeleteConsultation(c.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintln(c.OutOrStdout(), "Deleted")
		return nil
	}})

	return cmd
}

func addConsultationFlags(c *cobra.Command) {
	c.Flags().String("appointment", "", "Appointment id")
	c.Flags().String("patient", "", "Patient id")
	c.Flags().String("diagnosis", "", "Diagnosis")
	c.Flags().String("prescription", "", "Prescription")
	c.Flags().String("notes", "", "Additional notes")
}

func upsertConsultation(a *app, c *cobra.Command, id string) error {
	if err := a.ensure(); err != nil {
		return err
	}
	appointment, _ := c.Flags().GetString("appointment")
	patient, _ := c.Flags().GetString("patient")
	diagnosis, _ := c.Flags().GetString("diagnosis")
	prescription, _ := c.Flags().GetString("prescription")
	notes, _ := c.Flags().GetString("notes")

	req := api.ConsultationUpsert{
		AppointmentID: appointment,
		PatientID:     patient,
		Diagnosis:     diagnosis,
		Prescription:  prescription,
		Notes:         notes,
	}
	if id == "" {
		cons, err := a.api.CreateConsultation(c.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(c, cons)
	}
	if err := a.api.UpdateConsultation(c.Context(), id, req); err != nil {
		return err
	}
	fmt.Fprintln(c.OutOrStdout(), "Updated")
	return nil
}
