package api

import (
	"context"
	"net/http"
	"net/url"

	"medilink/internal/shared/models"
)

// Doctors lists doctors, optionally narrowed to one specialization.
func (c *Client) Doctors(ctx context.Context, specialization string) ([]models.Doctor, error) {
	q := url.Values{}
	if specialization != "" {
		q.Set("specialization", specialization)
	}
	var res []models.Doctor
	err := c.do(ctx, http.MethodGet, queryPath("/doctors", q), nil, &res)
	return res, err
}

// PopularDoctors returns the highest-rated doctors for the home screen.
func (c *Client) PopularDoctors(ctx context.Context, specialization string) ([]models.Doctor, error) {
	q := url.Values{}
	if specialization != "" {
		q.Set("specialization", specialization)
	}
	var res []models.Doctor
	err := c.do(ctx, http.MethodGet, queryPath("/doctors/popular", q), nil, &res)
	return res, err
}

func (c *Client) SearchDoctors(ctx context.Context, query string) ([]models.Doctor, error) {
	q := url.Values{}
	q.Set("query", query)
	var res []models.Doctor
	err := c.do(ctx, http.MethodGet, queryPath("/doctors/search", q), nil, &res)
	return res, err
}

// DoctorUpsert is the admin payload for creating or updating a doctor.
type DoctorUpsert struct {
	Email        string                    `json:"email"`
	Password     string                    `json:"password,omitempty"`
	Profile      models.DoctorProfile      `json:"profile"`
	Availability []models.AvailabilitySlot `json:"availability"`
}

func (c *Client) CreateDoctor(ctx context.Context, req DoctorUpsert) (models.Doctor, error) {
	var res models.Doctor
	err := c.do(ctx, http.MethodPost, "/admin/create-doctor", req, &res)
	return res, err
}

func (c *Client) AdminDoctor(ctx context.Context, id string) (models.Doctor, error) {
	var res models.Doctor
	err := c.do(ctx, http.MethodGet, "/admin/doctor/"+url.PathEscape(id), nil, &res)
	return res, err
}

func (c *Client) UpdateDoctor(ctx context.Context, id string, req DoctorUpsert) error {
	return c.do(ctx, http.MethodPut, "/admin/update-doctor/"+url.PathEscape(id), req, nil)
}

func (c *Client) DeleteDoctor(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/admin/delete-doctor/"+url.PathEscape(id), nil, nil)
}
