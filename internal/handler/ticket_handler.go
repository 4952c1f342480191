package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wifiticket/guestpass/internal/service"
	"wifiticket/guestpass/pkg/response"
)

const (
	HeaderBatchID         = "X-Batch-ID"
	HeaderHistoryRecorded = "X-History-Recorded"
	// HeaderHistoryRead is false when the batch was generated without
	// checking the identifier history, so duplicates of past batches are possible.
	HeaderHistoryRead = "X-History-Read"
)

type TicketHandler struct {
	tickets   service.TicketService
	batchSize int
	logger    *zap.Logger
}

func NewTicketHandler(tickets service.TicketService, batchSize int, logger *zap.Logger) *TicketHandler {
	return &TicketHandler{tickets: tickets, batchSize: batchSize, logger: logger}
}

type PrintLatestRequest struct {
	Printer string `json:"printer"`
}

// Generate issues a batch and returns the rendered sheet as a download.
// ?print=true additionally sends it to the server's printer.
func (h *TicketHandler) Generate(c *gin.Context) {
	res, err := h.tickets.Issue(c.Request.Context(), service.IssueOptions{
		Count:   h.batchSize,
		Print:   c.Query("print") == "true",
		Printer: c.Query("printer"),
	})
	if err != nil {
		respondError(c, h.logger, err, "failed to generate credentials")
		return
	}

	setBatchHeaders(c, res)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, res.Filename))
	c.Data(http.StatusOK, "application/pdf", res.PDF)
}

// GeneratePrint issues a batch and returns a page that prints it in the browser.
func (h *TicketHandler) GeneratePrint(c *gin.Context) {
	res, err := h.tickets.Issue(c.Request.Context(), service.IssueOptions{Count: h.batchSize})
	if err != nil {
		respondError(c, h.logger, err, "failed to generate credentials")
		return
	}

	setBatchHeaders(c, res)
	c.HTML(http.StatusOK, "print.tmpl", printPage{
		Filename: res.Filename,
		Source:   pdfDataURL(res.PDF),
	})
}

// PrintLatestPage returns a browser auto-print page for the newest stored sheet.
func (h *TicketHandler) PrintLatestPage(c *gin.Context) {
	doc, data, err := h.tickets.Latest(c.Request.Context())
	if errors.Is(err, service.ErrNoDocument) {
		c.HTML(http.StatusNotFound, "message.tmpl", messagePage{
			Title:   "No PDF found",
			Message: "Please generate a Wi-Fi ticket first.",
		})
		return
	}
	if err != nil {
		h.logger.Error("load latest sheet", zap.Error(err))
		c.HTML(http.StatusInternalServerError, "message.tmpl", messagePage{
			Title:   "Failed to load latest PDF",
			Message: "Please check the server logs for more details.",
		})
		return
	}

	c.HTML(http.StatusOK, "print.tmpl", printPage{
		Filename: doc.Filename,
		Header: fmt.Sprintf("Latest Wi-Fi ticket: %s (updated: %s)",
			doc.Filename, doc.ModifiedAt.Format("02/01/2006 15:04:05")),
		Source: pdfDataURL(data),
	})
}

// PrintLatest sends the newest stored sheet to a server-side printer. The
// printer is taken from the JSON body, then the query string.
func (h *TicketHandler) PrintLatest(c *gin.Context) {
	var req PrintLatestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}
	printerName := req.Printer
	if printerName == "" {
		printerName = c.Query("printer")
	}

	res, err := h.tickets.PrintLatest(c.Request.Context(), printerName)
	if err != nil {
		respondError(c, h.logger, err, "failed to print PDF")
		return
	}
	response.Success(c, res)
}

func setBatchHeaders(c *gin.Context, res *service.IssueResult) {
	c.Header(HeaderBatchID, res.Batch.ID.String())
	c.Header(HeaderHistoryRecorded, strconv.FormatBool(res.Batch.HistoryRecorded()))
	c.Header(HeaderHistoryRead, strconv.FormatBool(res.Batch.HistoryLoaded()))
}
