package api

import (
	"errors"
	"fmt"
	"time"

	"propval/internal/app"
	"propval/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type runValuationRequest struct {
	Subject         domain.Property             `json:"subject"`
	Scope           domain.Scope                `json:"scope"`
	WindowStart     string                      `json:"windowStart"`
	WindowEnd       string                      `json:"windowEnd"`
	Assessment      *domain.ConditionAssessment `json:"assessment,omitempty"`
	SupersedesRunID *string                     `json:"supersedesRunId,omitempty"`
}

func (m ApiHandler) runValuation(c *gin.Context) {
	var requestBody runValuationRequest
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		returnErrorJsonCode(err, c, 400)
		return
	}

	if requestBody.Subject.Features.AreaSqft <= 0 {
		returnErrorJsonCode(fmt.Errorf("subject must have a positive area"), c, 400)
		return
	}

	window, err := parseWindow(requestBody.WindowStart, requestBody.WindowEnd)
	if err != nil {
		returnErrorJsonCode(err, c, 400)
		return
	}

	in := app.RunValuationInput{
		Subject:    requestBody.Subject,
		Scope:      requestBody.Scope,
		Window:     window,
		Assessment: requestBody.Assessment,
	}
	if requestBody.SupersedesRunID != nil {
		supersedes, err := uuid.Parse(*requestBody.SupersedesRunID)
		if err != nil {
			returnErrorJsonCode(fmt.Errorf("invalid supersedesRunId: %w", err), c, 400)
			return
		}
		in.SupersedesRunID = &supersedes
	}

	record, err := m.ValuationHandler.RunValuation(c, in)
	if err != nil {
		var insufficientComps domain.InsufficientComparablesError
		var noUsableMethod domain.NoUsableMethodError
		if errors.As(err, &insufficientComps) || errors.As(err, &noUsableMethod) {
			// the failed record still carries partial artifacts for
			// diagnostics
			c.JSON(422, gin.H{
				"error":  err.Error(),
				"record": record,
			})
			return
		}
		returnErrorJson(err, c)
		return
	}

	c.JSON(200, record)
}

func (m ApiHandler) getValuation(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("runId"))
	if err != nil {
		returnErrorJsonCode(fmt.Errorf("invalid run id: %w", err), c, 400)
		return
	}

	record, err := m.RecordRepository.Get(c, runID)
	if err != nil {
		returnErrorJsonCode(err, c, 404)
		return
	}

	c.JSON(200, record)
}

func (m ApiHandler) listValuations(c *gin.Context) {
	subjectID, err := uuid.Parse(c.Param("subjectId"))
	if err != nil {
		returnErrorJsonCode(fmt.Errorf("invalid subject id: %w", err), c, 400)
		return
	}

	records, err := m.RecordRepository.ListBySubject(c, subjectID)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	c.JSON(200, gin.H{"valuations": records})
}

func parseWindow(start, end string) (domain.Window, error) {
	if start == "" || end == "" {
		// default to the trailing two years
		now := time.Now().UTC()
		return domain.Window{Start: now.AddDate(-2, 0, 0), End: now}, nil
	}
	startDate, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return domain.Window{}, fmt.Errorf("invalid windowStart: %w", err)
	}
	endDate, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return domain.Window{}, fmt.Errorf("invalid windowEnd: %w", err)
	}
	if !endDate.After(startDate) {
		return domain.Window{}, fmt.Errorf("windowEnd must be after windowStart")
	}
	return domain.Window{Start: startDate, End: endDate}, nil
}
