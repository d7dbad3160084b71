package presenter

import (
	"io"
	"strconv"
	"strings"

	"wrls/internal/notices/address"
	"wrls/internal/notices/models"
	"wrls/pkg/csvformat"
)

var addressHeaders = func() []string {
	h := make([]string, address.MaxLines)
	for i := range h {
		h[i] = "Address line " + strconv.Itoa(i+1)
	}
	return h
}()

// DownloadHeaders is the fixed column order of the CSV for noticeType.
func DownloadHeaders(noticeType models.NoticeType) []string {
	headers := []string{
		"Licence",
		"Return reference",
		"Return period start date",
		"Return period end date",
		"Return due date",
	}
	if noticeType == models.NoticeTypePaperReturn {
		headers = append(headers, "Site description", "Purpose")
	}
	headers = append(headers, "Notification type", "Message type", "Contact type")
	if noticeType != models.NoticeTypePaperReturn {
		headers = append(headers, "Email")
	}
	return append(headers, addressHeaders...)
}

// DownloadRow lays out one download-shape recipient under DownloadHeaders.
func DownloadRow(noticeType models.NoticeType, r models.Recipient) []any {
	var (
		licenceRef      string
		returnReference string
		siteDescription string
		purpose         string
	)
	if len(r.LicenceRefs) > 0 {
		licenceRef = r.LicenceRefs[0]
	}
	if log := r.Return; log != nil {
		licenceRef = log.LicenceRef
		returnReference = log.ReturnReference
		siteDescription = log.SiteDescription
		purpose = log.Purpose
	}

	row := []any{
		licenceRef,
		returnReference,
		r.PeriodStart,
		r.PeriodEnd,
		r.NotificationDueDate,
	}
	if noticeType == models.NoticeTypePaperReturn {
		row = append(row, siteDescription, purpose)
	}
	row = append(row, noticeType.Label(), r.MessageType.Label(), r.ContactType.Label())
	if noticeType != models.NoticeTypePaperReturn {
		row = append(row, r.Email)
	}

	for _, line := range downloadAddress(r) {
		row = append(row, line)
	}
	return row
}

// WriteDownload writes the header and one row per recipient to w. The header
// row is literal text; only data rows go through the cell formatter.
func WriteDownload(w io.Writer, noticeType models.NoticeType, rs []models.Recipient) error {
	if _, err := io.WriteString(w, strings.Join(DownloadHeaders(noticeType), ",")+"\n"); err != nil {
		return err
	}
	for _, r := range rs {
		if err := writeRow(w, DownloadRow(noticeType, r)); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(w io.Writer, values []any) error {
	row, ok := csvformat.FormatRow(values)
	if !ok {
		return nil
	}
	_, err := io.WriteString(w, row)
	return err
}

// downloadAddress always returns address.MaxLines cells. Invalid addresses
// can list more fields than that; the overflow is folded into the last cell.
func downloadAddress(r models.Recipient) []string {
	cells := make([]string, address.MaxLines)
	if r.Contact == nil {
		return cells
	}

	lines := address.Normalize(*r.Contact)
	if len(lines) > address.MaxLines {
		last := address.MaxLines - 1
		folded := strings.Join(lines[last:], ", ")
		lines = append(lines[:last:last], folded)
	}
	copy(cells, lines)
	return cells
}
