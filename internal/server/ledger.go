package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/billbook/internal/ledger/domain"
)

func (s *Server) PostLedgerEntry(c *gin.Context) {
	var req ledgerdomain.PostEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ledgerSvc.PostEntry(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListLedgerEntries(c *gin.Context) {
	filter, ok := bindEntryFilter(c)
	if !ok {
		return
	}

	resp, err := s.ledgerSvc.ListEntries(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteLedgerEntry(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.ledgerSvc.DeleteEntry(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) GetLedgerReport(c *gin.Context) {
	filter, ok := bindEntryFilter(c)
	if !ok {
		return
	}

	resp, err := s.ledgerSvc.Report(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCreditReport(c *gin.Context) {
	resp, err := s.ledgerSvc.CreditReport(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetDashboard summarizes the book for a day, today when date is omitted.
func (s *Server) GetDashboard(c *gin.Context) {
	day, err := parseOptionalDate(c.Query("date"))
	if err != nil {
		AbortWithError(c, newValidationError("date", "invalid_date", "invalid date"))
		return
	}
	if day == nil {
		now := s.clock.Now()
		day = &now
	}

	resp, err := s.ledgerSvc.Summary(c.Request.Context(), *day)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func bindEntryFilter(c *gin.Context) (ledgerdomain.EntryFilter, bool) {
	var query struct {
		CustomerID string `form:"customer_id"`
		Kind       string `form:"kind"`
		StartDate  string `form:"start_date"`
		EndDate    string `form:"end_date"`
		Limit      string `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return ledgerdomain.EntryFilter{}, false
	}

	customerID, err := parseOptionalSnowflakeID(query.CustomerID)
	if err != nil {
		AbortWithError(c, newValidationError("customer_id", "invalid_customer_id", "invalid customer_id"))
		return ledgerdomain.EntryFilter{}, false
	}
	from, err := parseOptionalDate(query.StartDate)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_start_date", "invalid start_date"))
		return ledgerdomain.EntryFilter{}, false
	}
	to, err := parseOptionalDate(query.EndDate)
	if err != nil {
		AbortWithError(c, newValidationError("end_date", "invalid_end_date", "invalid end_date"))
		return ledgerdomain.EntryFilter{}, false
	}
	limit, err := parseOptionalInt(query.Limit)
	if err != nil || limit < 0 {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return ledgerdomain.EntryFilter{}, false
	}

	return ledgerdomain.EntryFilter{
		CustomerID: customerID,
		Kind:       ledgerdomain.EntryKind(strings.ToLower(strings.TrimSpace(query.Kind))),
		From:       from,
		To:         to,
		Limit:      limit,
	}, true
}
