package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"medilink/internal/shared/models"
)

// ConsultationUpsert is the doctor's write payload for a consultation.
type ConsultationUpsert struct {
	AppointmentID string `json:"appointmentId"`
	PatientID     string `json:"patientId"`
	Diagnosis     string `json:"diagnosis"`
	Prescription  string `json:"prescription"`
	Notes         string `json:"notes,omitempty"`
}

func (c *Client) CreateConsultation(ctx context.Context, req ConsultationUpsert) (models.Consultation, error) {
	var res models.Consultation
	err := c.do(ctx, http.MethodPost, "/consultations", req, &res)
	return res, err
}

// ConsultationByAppointment is the doctor-side lookup.
func (c *Client) ConsultationByAppointment(ctx context.Context, appointmentID string) (models.Consultation, error) {
	var res models.Consultation
	err := c.do(ctx, http.MethodGet, "/consultations/appointment/"+url.PathEscape(appointmentID), nil, &res)
	return res, err
}

// PatientConsultations lists the signed-in patient's consultation history.
func (c *Client) PatientConsultations(ctx context.Context) ([]models.Consultation, error) {
	var res []models.Consultation
	err := c.do(ctx, http.MethodGet, "/patient/consultations", nil, &res)
	return res, err
}

// PatientConsultationByAppointment is the patient-side lookup.
func (c *Client) PatientConsultationByAppointment(ctx context.Context, appointmentID string) (models.Consultation, error) {
	var res models.Consultation
	err := c.do(ctx, http.MethodGet, "/patient/consultation/appointment/"+url.PathEscape(appointmentID), nil, &res)
	return res, err
}

func (c *Client) UpdateConsultation(ctx context.Context, id string, req ConsultationUpsert) error {
	return c.do(ctx, http.MethodPut, "/consultations/"+url.PathEscape(id), req, nil)
}

func (c *Client) DeleteConsultation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/consultations/"+url.PathEscape(id), nil, nil)
}

// ConsultationDocument downloads one file attached to a consultation. The
// payload is binary, not JSON; the content type comes back alongside it.
func (c *Client) ConsultationDocument(ctx context.Context, id, filename string) ([]byte, string, error) {
	path := "/consultations/" + url.PathEscape(id) + "/documents/" + url.PathEscape(filename)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: %w", path, err)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", transportErr(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", c.apiError(http.MethodGet, path, resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: read body: %w", path, err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
