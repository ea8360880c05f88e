package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"medilink/internal/client/api"
	"medilink/internal/shared/models"
)

func newAppointmentsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "appointments", Short: "Book and manage appointments"}

	book := &cobra.Command{Use: "book", Short: "Book an appointment", RunE: func(c *cobra.Command, _ []string) error {
		return bookAppointment(a, c)
	}}
	book.Flags().String("doctor", "", "Doctor id")
	book.Flags().String("date", "", "Date and time (RFC 3339)")
	book.Flags().Int("duration", 30, "Duration in minutes")
	book.Flags().String("reason", "", "Reason for the visit")
	_ = book.MarkFlagRequired("doctor")
	_ = book.MarkFlagRequired("date")
	cmd.AddCommand(book)

	cmd.AddCommand(&cobra.Command{Use: "list", Short: "List my appointments (patient)", RunE: func(c *cobra.Command, _ []string) error {
		if err := a.ensure(); err != nil {
			return err
		}
		appts, err := a.api.PatientAppointments(c.Context())
		if err != nil {
			return err
		}
		return printJSON(c, appts)
	}})

	schedule := &cobra.Command{Use: "schedule", Short: "List my schedule (doctor)", RunE: func(c *cobra.Command, _ []string) error {
		if err := a.ensure(); err != nil {
			return err
		}
		status, _ := c.Flags().GetString("status")
		appts, err := a.api.DoctorAppointments(c.Context(), models.AppointmentStatus(status))
		if err != nil {
			return err
		}
		return printJSON(c, appts)
	}}
	schedule.Flags().String("status", "", "Filter by status (pending, confirmed, rejected, cancelled, completed)")
	cmd.AddCommand(schedule)

	cmd.AddCommand(&cobra.Command{Use: "get", Short: "Show one appointment", Args: cobra.ExactArgs(1), RunE: func(c *cobra.Command, args []string) error {
		if err := a.ensure(); err != nil {
			return err
		}
		appt, err := a.api.Appointment(c.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(c, appt)
	}})

	cmd.AddCommand(&cobra.Command{Use: "set-status", Short: "Update an appointment's status (doctor)", Args: cobra.ExactArgs(2), RunE: func(c *cobra.Command, args []string) error {
		if err := a.ensure(); err != nil {
			return err
		}
		if err := a.api.UpdateAppointmentStatus(c.Context(), args[0], models.AppointmentStatus(args[1])); err != nil {
			return err
		}
		fmt.Fprintln(c.OutOrStdout(), "Updated")
		return nil
	}})

	cmd.AddCommand(&cobra.Command{Use: "reschedule", Short: "Move an appointment to a new time", Args: cobra.ExactArgs(2), RunE: func(c *cobra.Command, args []string) error {
		if err := a.ensure(); err != nil {
			return err
		}
		date, err := time.Parse(time.RFC3339, args[1])
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", args[1], err)
		}
		if err := a.api.RescheduleAppointment(c.Context(), args[0], date); err != nil {
			return err
		}
		fmt.Fprintln(c.OutOrStdout(), "Rescheduled")
		return nil
	}})

	return cmd
}

func bookAppointment(a *app, c *cobra.Command) error {
	if err := a.ensure(); err != nil {
		return err
	}
	doctor, _ := c.Flags().GetString("doctor")
	rawDate, _ := c.Flags().GetString("date")
	duration, _ := c.Flags().GetInt("duration")
	reason, _ := c.Flags().GetString("reason")

	date, err := time.Parse(time.RFC3339, rawDate)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", rawDate, err)
	}
	appt, err := a.api.BookAppointment(c.Context(), api.BookingRequest{
		DoctorID: doctor,
		Date:     date,
		Duration: duration,
		Reason:   reason,
	})
	if err != nil {
		return err
	}
	return printJSON(c, appt)
}
