package server

import (
	"time"

	"tomgalvin.uk/catprint/internal/history"
	"tomgalvin.uk/catprint/internal/printer"
)

type StatusResponse struct {
	Supported    bool   `json:"supported"`
	State        string `json:"state"`
	DeviceName   string `json:"deviceName,omitempty"`
	Profile      string `json:"profile,omitempty"`
	DeviceStatus string `json:"deviceStatus,omitempty"`
}

func FromInfo(i printer.Info, supported bool) StatusResponse {
	r := StatusResponse{
		Supported: supported,
		State:     i.State.String(),
	}
	if i.State == printer.Connected || i.State == printer.Printing {
		r.DeviceName = i.DeviceName
		r.Profile = i.Profile.String()
		r.DeviceStatus = i.DeviceStatus.String()
	}
	return r
}

type JobResponse struct {
	Id         string     `json:"id"`
	CreatedAt  time.Time  `json:"createdAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	DeviceName string     `json:"deviceName"`
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Algorithm  string     `json:"algorithm"`
	Energy     int        `json:"energy"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
}

func FromJob(j *history.Job) JobResponse {
	return JobResponse{
		Id:         j.Uuid.String(),
		CreatedAt:  j.CreatedAt,
		FinishedAt: j.FinishedAt,
		DeviceName: j.DeviceName,
		Width:      j.Width,
		Height:     j.Height,
		Algorithm:  j.Algorithm,
		Energy:     j.Energy,
		Status:     string(j.Status),
		Error:      j.Error,
	}
}

type Progress struct {
	Job     string `json:"job"`
	Percent int    `json:"percent"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
