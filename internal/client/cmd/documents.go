package cmd

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"medilink/internal/shared/models"
)

func newDocumentsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "documents", Short: "Manage locally cached appointment documents"}

	upload := &cobra.Command{Use: "upload", Short: "Store a file against an appointment", Args: cobra.ExactArgs(1), RunE: func(c *cobra.Command, args []string) error {
		return uploadDocument(a, c, args[0])
	}}
	upload.Flags().String("appointment", "", "Appointment id")
	upload.Flags().String("doctor", "", "Doctor id")
	_ = upload.MarkFlagRequired("appointment")
	cmd.AddCommand(upload)

	cmd.AddCommand(&cobra.Command{Use: "list", Short: "List documents for an appointment", Args: cobra.ExactArgs(1), RunE: func(c *cobra.Command, args []string) error {
		if err := a.ensure(); err != nil {
			return err
		}
		docs, err := a.docs.DocumentsByAppointment(c.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(c, docs)
	}})

	export := &cobra.Command{Use: "export", Short: "Write an appointment's documents to disk", Args: cobra.ExactArgs(1), RunE: func(c *cobra.Command, args []string) error {
		return exportDocuments(a, c, args[0])
	}}
	export.Flags().String("dir", ".", "Output directory")
	cmd.AddCommand(export)

	return cmd
}

func uploadDocument(a *app, c *cobra.Command, path string) error {
	if err := a.ensure(); err != nil {
		return err
	}
	appointment, _ := c.Flags().GetString("appointment")
	doctor, _ := c.Flags().GetString("doctor")

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	_, err = a.docs.SaveDocument(c.Context(), models.Document{
		AppointmentID: appointment,
		DoctorID:      doctor,
		Filename:      filepath.Base(path),
		FileData:      base64.StdEncoding.EncodeToString(data),
		MimeType:      mimeType,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.OutOrStdout(), "Stored %s for appointment %s\n", filepath.Base(path), appointment)
	return nil
}

func exportDocuments(a *app, c *cobra.Command, appointmentID string) error {
	if err := a.ensure(); err != nil {
		return err
	}
	dir, _ := c.Flags().GetString("dir")

	docs, err := a.docs.DocumentsByAppointment(c.Context(), appointmentID)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(c.OutOrStdout(), "No documents")
		return nil
	}
	for _, d := range docs {
		data, err := base64.StdEncoding.DecodeString(d.FileData)
		if err != nil {
			return fmt.Errorf("document %d is corrupt: %w", d.ID, err)
		}
		out := filepath.Join(dir, d.Filename)
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return err
		}
		if err := a.docs.MarkViewed(c.Context(), d.ID); err != nil {
			a.log.Warn().Err(err).Int64("id", d.ID).Msg("could not mark document viewed")
		}
		fmt.Fprintln(c.OutOrStdout(), out)
	}
	return nil
}
