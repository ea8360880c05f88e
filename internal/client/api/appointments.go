package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"medilink/internal/shared/models"
)

// BookingRequest asks for a new appointment with a doctor.
type BookingRequest struct {
	DoctorID string    `json:"doctorId"`
	Date     time.Time `json:"date"`
	Duration int       `json:"duration"`
	Reason   string    `json:"reason"`
}

func (c *Client) BookAppointment(ctx context.Context, req BookingRequest) (models.Appointment, error) {
	var res models.Appointment
	err := c.do(ctx, http.MethodPost, "/appointments", req, &res)
	return res, err
}

// PatientAppointments lists the signed-in patient's appointments.
func (c *Client) PatientAppointments(ctx context.Context) ([]models.Appointment, error) {
	var res []models.Appointment
	err := c.do(ctx, http.MethodGet, "/appointments/patient", nil, &res)
	return res, err
}

// DoctorAppointments lists the signed-in doctor's appointments, optionally
// filtered by status.
func (c *Client) DoctorAppointments(ctx context.Context, status models.AppointmentStatus) ([]models.Appointment, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	var res []models.Appointment
	err := c.do(ctx, http.MethodGet, queryPath("/appointments/doctor", q), nil, &res)
	return res, err
}

func (c *Client) Appointment(ctx context.Context, id string) (models.Appointment, error) {
	var res models.Appointment
	err := c.do(ctx, http.MethodGet, "/appointments/"+url.PathEscape(id), nil, &res)
	return res, err
}

func (c *Client) UpdateAppointmentStatus(ctx context.Context, id string, status models.AppointmentStatus) error {
	return c.do(ctx, http.MethodPut, "/appointments/"+url.PathEscape(id)+"/status",
		map[string]string{"status": string(status)}, nil)
}

func (c *Client) RescheduleAppointment(ctx context.Context, id string, date time.Time) error {
	return c.do(ctx, http.MethodPut, "/appointments/"+url.PathEscape(id),
		map[string]any{"date": date}, nil)
}
