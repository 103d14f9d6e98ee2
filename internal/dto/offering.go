package dto

import (
	"time"

	"github.com/noah-isme/studycenter-api/internal/models"
)

// CommitmentRequest is the wire form of a recurring time commitment. EndDate is the last meeting day.
type CommitmentRequest struct {
	StartDate string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string   `json:"end_date" validate:"required,datetime=2006-01-02"`
	Weekdays  []string `json:"weekdays" validate:"required,min=1,max=7,dive,required"`
	StartTime string   `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string   `json:"end_time" validate:"required,datetime=15:04"`
}

// ToModel parses the request into a TimeCommitment and validates its shape.
func (r CommitmentRequest) ToModel() (models.TimeCommitment, error) {
	var c models.TimeCommitment
	start, err := time.Parse(models.DateLayout, r.StartDate)
	if err != nil {
		return c, err
	}
	end, err := time.Parse(models.DateLayout, r.EndDate)
	if err != nil {
		return c, err
	}
	weekdays, err := models.ParseWeekdays(r.Weekdays)
	if err != nil {
		return c, err
	}
	startTime, err := models.ParseClockTime(r.StartTime)
	if err != nil {
		return c, err
	}
	endTime, err := models.ParseClockTime(r.EndTime)
	if err != nil {
		return c, err
	}
	c = models.TimeCommitment{StartDate: start, EndDate: end, Weekdays: weekdays, StartTime: startTime, EndTime: endTime}
	return c, c.Validate()
}

// CreateOfferingRequest places a new offering.
type CreateOfferingRequest struct {
	SubjectID    string            `json:"subject_id" validate:"required"`
	RoomID       string            `json:"room_id" validate:"required"`
	InstructorID *string           `json:"instructor_id" validate:"omitempty"`
	Title        string            `json:"title" validate:"required,max=200"`
	Capacity     int               `json:"capacity" validate:"required,min=1"`
	Commitment   CommitmentRequest `json:"commitment" validate:"required"`
}

// RescheduleOfferingRequest replaces placement, staffing and capacity of an existing offering.
type RescheduleOfferingRequest struct {
	RoomID       string            `json:"room_id" validate:"required"`
	InstructorID *string           `json:"instructor_id" validate:"omitempty"`
	Title        string            `json:"title" validate:"omitempty,max=200"`
	Capacity     int               `json:"capacity" validate:"required,min=1"`
	Commitment   CommitmentRequest `json:"commitment" validate:"required"`
}

// CheckScheduleRequest is a dry-run proposal. ExcludeOfferingID names the offering being moved.
type CheckScheduleRequest struct {
	ExcludeOfferingID string            `json:"exclude_offering_id"`
	SubjectID         string            `json:"subject_id" validate:"required"`
	RoomID            string            `json:"room_id" validate:"required"`
	InstructorID      *string           `json:"instructor_id"`
	Capacity          int               `json:"capacity" validate:"required,min=1"`
	Commitment        CommitmentRequest `json:"commitment" validate:"required"`
}

// OfferingListQuery captures list filters from the query string.
type OfferingListQuery struct {
	SubjectID    string `form:"subject_id"`
	RoomID       string `form:"room_id"`
	InstructorID string `form:"instructor_id"`
	Completed    *bool  `form:"completed"`
	Page         int    `form:"page"`
	PageSize     int    `form:"page_size"`
	SortBy       string `form:"sort_by"`
	SortOrder    string `form:"sort_order"`
}

// Filter converts the query into a repository filter.
func (q OfferingListQuery) Filter() models.OfferingFilter {
	return models.OfferingFilter{
		SubjectID:    q.SubjectID,
		RoomID:       q.RoomID,
		InstructorID: q.InstructorID,
		Completed:    q.Completed,
		Page:         q.Page,
		PageSize:     q.PageSize,
		SortBy:       q.SortBy,
		SortOrder:    q.SortOrder,
	}
}
