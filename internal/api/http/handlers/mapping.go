package handlers

import (
	"github.com/spec-kit/checkin-service/internal/api/dto"
	"github.com/spec-kit/checkin-service/internal/domain"
	"github.com/spec-kit/checkin-service/internal/service"
)

func transitionResponse(outcome *service.Outcome) dto.TransitionResponse {
	resp := dto.TransitionResponse{Success: true, Action: outcome.Action}
	if record := outcome.Attendance; record != nil {
		clockIn := record.ClockInTime
		resp.RecordID = record.ID
		resp.ClockInTime = &clockIn
		resp.ClockOutTime = record.ClockOutTime
		resp.Status = outcome.Status
		if outcome.Action == domain.ActionClockOut {
			hours := outcome.TotalHours
			resp.TotalHours = &hours
		}
	}
	if outcome.Visitor != nil {
		v := visitorResponse(outcome.Visitor)
		resp.RecordID = outcome.Visitor.ID
		resp.Visitor = &v
	}
	return resp
}

func attendanceRecordResponse(record *domain.AttendanceRecord, status domain.AttendanceStatus) dto.AttendanceRecordResponse {
	resp := dto.AttendanceRecordResponse{
		ID:               record.ID,
		UserID:           record.UserID,
		ClockInTime:      record.ClockInTime,
		ClockOutTime:     record.ClockOutTime,
		ClockInMethod:    record.Method,
		ClockOutMethod:   record.ClockOutMethod,
		ManualFallback:   record.ManualFallback,
		FlaggedForReview: record.FlaggedForReview,
		AuditNotes:       record.AuditNotes,
		Status:           status,
	}
	if !record.Open() {
		hours := record.TotalHours()
		resp.TotalHours = &hours
	}
	return resp
}

func attendanceViews(views []service.AttendanceView) []dto.AttendanceRecordResponse {
	items := make([]dto.AttendanceRecordResponse, 0, len(views))
	for i := range views {
		items = append(items, attendanceRecordResponse(&views[i].Record, views[i].Status))
	}
	return items
}

func visitorResponse(v *domain.VisitorRecord) dto.VisitorResponse {
	return dto.VisitorResponse{
		ID:             v.ID,
		FullName:       v.FullName,
		Contact:        v.Contact,
		HostEmployeeID: v.HostEmployeeID,
		Purpose:        v.Purpose,
		CheckInTime:    v.CheckInTime,
		CheckOutTime:   v.CheckOutTime,
		Status:         v.Status,
	}
}

func sessionResponse(s domain.Session, currentID string) dto.SessionResponse {
	return dto.SessionResponse{
		ID:           s.ID,
		Service:      s.Service,
		UserAgent:    s.UserAgent,
		IPAddress:    s.IPAddress,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
		IsCurrent:    s.ID == currentID,
	}
}

func employeeResponse(e *domain.Employee) dto.EmployeeResponse {
	return dto.EmployeeResponse{ID: e.ID, Name: e.Name, Email: e.Email, Role: e.Role}
}
