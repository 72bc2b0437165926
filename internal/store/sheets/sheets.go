package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"autopost/internal/domain"
)

var ErrSpreadsheetNotFound = errors.New("spreadsheet not found")

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

type Options struct {
	CredentialsFile string
	SpreadsheetName string

	// Endpoint overrides, used against emulators and in tests.
	SheetsEndpoint string
	DriveEndpoint  string
	HTTPClient     *http.Client
}

// Appender writes log rows to the first worksheet of a spreadsheet looked up
// by name among the files the service account can see.
type Appender struct {
	name   string
	sheets *gsheets.Service
	drive  *drive.Service

	mu     sync.Mutex
	target *target
}

type target struct {
	spreadsheetID string
	sheetTitle    string
}

func New(ctx context.Context, opts Options) (*Appender, error) {
	if strings.TrimSpace(opts.SpreadsheetName) == "" {
		return nil, errors.New("spreadsheet name is required")
	}

	common := []option.ClientOption{}
	if opts.HTTPClient != nil {
		common = append(common, option.WithHTTPClient(opts.HTTPClient))
	} else {
		common = append(common,
			option.WithCredentialsFile(opts.CredentialsFile),
			option.WithScopes(gsheets.SpreadsheetsScope, drive.DriveMetadataReadonlyScope),
		)
	}

	sheetsOpts := append([]option.ClientOption{}, common...)
	if opts.SheetsEndpoint != "" {
		sheetsOpts = append(sheetsOpts, option.WithEndpoint(opts.SheetsEndpoint))
	}
	ss, err := gsheets.NewService(ctx, sheetsOpts...)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}

	driveOpts := append([]option.ClientOption{}, common...)
	if opts.DriveEndpoint != "" {
		driveOpts = append(driveOpts, option.WithEndpoint(opts.DriveEndpoint))
	}
	ds, err := drive.NewService(ctx, driveOpts...)
	if err != nil {
		return nil, fmt.Errorf("drive client: %w", err)
	}

	return &Appender{name: opts.SpreadsheetName, sheets: ss, drive: ds}, nil
}

// Append adds one row after the last row of data. Earlier rows are never touched.
func (a *Appender) Append(ctx context.Context, e domain.LogEntry) error {
	t, err := a.resolve(ctx)
	if err != nil {
		return err
	}

	row := e.Row()
	values := make([]any, len(row))
	for i, v := range row {
		values[i] = v
	}

	_, err = a.sheets.Spreadsheets.Values.
		Append(t.spreadsheetID, quoteSheet(t.sheetTitle)+"!A1", &gsheets.ValueRange{Values: [][]any{values}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append row to %q: %w", a.name, err)
	}
	slog.Debug("sheet row appended", "spreadsheet_id", t.spreadsheetID, "sheet", t.sheetTitle, "status", e.Status)
	return nil
}

func (a *Appender) resolve(ctx context.Context) (*target, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.target != nil {
		return a.target, nil
	}

	list, err := a.drive.Files.List().
		Q(driveQuery(a.name)).
		Fields("files(id, name)").
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("find spreadsheet %q: %w", a.name, err)
	}
	if len(list.Files) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrSpreadsheetNotFound, a.name)
	}
	id := list.Files[0].Id

	ss, err := a.sheets.Spreadsheets.Get(id).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet %q: %w", a.name, err)
	}
	if len(ss.Sheets) == 0 || ss.Sheets[0].Properties == nil {
		return nil, fmt.Errorf("spreadsheet %q has no worksheets", a.name)
	}

	a.target = &target{spreadsheetID: id, sheetTitle: ss.Sheets[0].Properties.Title}
	return a.target, nil
}

func driveQuery(name string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(name)
	return fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escaped, spreadsheetMimeType)
}

func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
