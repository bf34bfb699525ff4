package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

type SheetsConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	Range           string `yaml:"range"`
}

// SheetsSink appends records as rows of a Google Sheets tab.
type SheetsSink struct {
	svc           *sheets.Service
	spreadsheetID string
	rng           string
}

// NewSheetsSink authorizes with the service account in cfg.CredentialsFile and checks that
// the spreadsheet is reachable. Extra client options are appended (tests point the client
// at a local endpoint).
func NewSheetsSink(ctx context.Context, cfg SheetsConfig, opts ...option.ClientOption) (*SheetsSink, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("%w: sheets spreadsheet_id is empty", ErrNotConfigured)
	}
	rng := cfg.Range
	if rng == "" {
		rng = "Sheet1"
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: credentials %s not found", ErrNotConfigured, cfg.CredentialsFile)
			}
			return nil, err
		}
		clientOpts = append(clientOpts,
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes(sheets.SpreadsheetsScope),
		)
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	if _, err := svc.Spreadsheets.Get(cfg.SpreadsheetID).Fields("spreadsheetId").Context(ctx).Do(); err != nil {
		return nil, fmt.Errorf("open spreadsheet %s: %w", cfg.SpreadsheetID, err)
	}

	return &SheetsSink{svc: svc, spreadsheetID: cfg.SpreadsheetID, rng: rng}, nil
}

func (s *SheetsSink) Name() string { return "sheets" }

func (s *SheetsSink) Append(ctx context.Context, r *domain.Record) error {
	meta, err := r.Metadata.JSON()
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	row := []interface{}{
		r.TimestampText(),
		json.Number(r.ValueText()),
		r.Raw,
		meta,
	}
	_, err = s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, s.rng, &sheets.ValueRange{Values: [][]interface{}{row}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

var _ ports.RemoteSink = (*SheetsSink)(nil)
