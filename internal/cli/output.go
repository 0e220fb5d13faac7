package cli

import (
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/Additional-Code/erpsync/internal/entity"
)

var statusOrder = []entity.SyncStatus{
	entity.SyncStatusPending,
	entity.SyncStatusProcessing,
	entity.SyncStatusSuccess,
	entity.SyncStatusFailed,
}

func renderMappings(w io.Writer, rows []entity.SyncMapping) error {
	table := tablewriter.NewWriter(w)
	table.Header("Order", "Status", "Customer", "ERP Order", "Invoice", "Trigger", "Error", "Updated")

	data := make([][]string, 0, len(rows))
	for _, m := range rows {
		data = append(data, []string{
			strconv.FormatInt(m.SourceOrderID, 10),
			string(m.Status),
			optionalID(m.RemoteCustomerID),
			optionalID(m.RemoteOrderID),
			optionalID(m.RemoteInvoiceID),
			m.Trigger,
			optionalString(m.ErrorMessage),
			m.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func renderStats(w io.Writer, counts map[entity.SyncStatus]int, errorsLogged int) error {
	table := tablewriter.NewWriter(w)
	table.Header("Status", "Mappings")

	total := 0
	data := make([][]string, 0, len(statusOrder)+2)
	for _, status := range statusOrder {
		total += counts[status]
		data = append(data, []string{string(status), strconv.Itoa(counts[status])})
	}
	data = append(data,
		[]string{"total", strconv.Itoa(total)},
		[]string{"error logs", strconv.Itoa(errorsLogged)},
	)
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func optionalID(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}

func optionalString(v *string) string {
	if v == nil || *v == "" {
		return "-"
	}
	return *v
}
