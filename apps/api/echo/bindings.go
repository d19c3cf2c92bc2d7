package echoapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/services/spreadsheet"
)

const (
	orderingParam = "ordering"
	pageParam     = "page"
	exportParam   = "export"

	// filter value that disables a defaulted filter
	allValue = "all"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// bindPage reads the `page` param; size is fixed per view.
func bindPage(ctx echo.Context, size int) core.Page {
	n, _ := strconv.Atoi(ctx.QueryParam(pageParam))
	return core.NewPage(n, size)
}

func bindID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id < 1 {
		return 0, echo.NewHTTPError(http.StatusNotFound, "Not Found")
	}
	return id, nil
}

// bindExport reads the `export` param: ok is false when the view is not being exported.
func bindExport(ctx echo.Context) (spreadsheet.Format, bool) {
	return spreadsheet.ParseFormat(ctx.QueryParam(exportParam))
}

// defaulted returns the query value, def when absent, and "" when set to "all".
func defaulted(ctx echo.Context, name, def string) string {
	val, ok := ctx.QueryParams()[name]
	if !ok {
		return def
	}
	v := core.CleanString(val[0])
	if strings.EqualFold(v, allValue) {
		return ""
	}
	return v
}

func optional(ctx echo.Context, name string) string {
	return defaulted(ctx, name, "")
}

// sendTable answers with t encoded as a downloadable file.
func sendTable(ctx echo.Context, f spreadsheet.Format, filename string, t *core.Table) error {
	var buf bytes.Buffer
	if err := spreadsheet.Write(&buf, f, t); err != nil {
		return errors.Wrap(err, "encoding export")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename+f.Ext()))
	return ctx.Blob(http.StatusOK, f.ContentType(), buf.Bytes())
}

func formatLabel(f spreadsheet.Format) string {
	if f == spreadsheet.Excel {
		return "Excel"
	}
	return "CSV"
}
