package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/apperr"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/lalith-99/carepath/internal/repository"
	"github.com/xuri/excelize/v2"
)

type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
)

func (f ExportFormat) ContentType() string {
	if f == ExportXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

var exportHeaders = []string{"ID", "Name", "Email", "Status", "Type", "Stage", "Surgeon", "Partner", "Address"}

const exportSheet = "Participants"

// ExportParticipants writes every participant matching filter to w, one
// row per participant, in the requested format.
func (s *Service) ExportParticipants(ctx context.Context, filter repository.ParticipantFilter, format ExportFormat, w io.Writer) error {
	rows, err := s.exportRows(ctx, filter)
	if err != nil {
		return err
	}
	switch format {
	case ExportCSV, "":
		return writeCSV(w, rows)
	case ExportXLSX:
		return writeXLSX(w, rows)
	default:
		return apperr.BadRequest(fmt.Sprintf("Unsupported export format %q.", format))
	}
}

func (s *Service) exportRows(ctx context.Context, filter repository.ParticipantFilter) ([][]string, error) {
	stages := map[uuid.UUID]string{}
	stageName := func(id *uuid.UUID) (string, error) {
		if id == nil {
			return "", nil
		}
		if name, ok := stages[*id]; ok {
			return name, nil
		}
		st, err := s.stage(ctx, id)
		if err != nil {
			return "", err
		}
		name := ""
		if st != nil {
			name = st.Name
		}
		stages[*id] = name
		return name, nil
	}

	out := make([][]string, 0)
	page := repository.Page{Page: 1, Limit: repository.MaxLimit}
	for {
		res, err := s.ListParticipants(ctx, filter, page)
		if err != nil {
			return nil, err
		}
		for _, v := range res.Items {
			stage, err := stageName(v.StageID)
			if err != nil {
				return nil, err
			}
			surgeon, err := s.exportSurgeon(ctx, v.ID)
			if err != nil {
				return nil, err
			}
			partner, err := s.exportPartner(ctx, &v.Participant, stageName)
			if err != nil {
				return nil, err
			}
			out = append(out, []string{
				v.ID.String(),
				v.Name,
				v.Email,
				string(v.Status),
				string(v.Type),
				stage,
				surgeon,
				partner,
				formatAddress(v.Address),
			})
		}
		if page.Page >= res.TotalPages {
			return out, nil
		}
		page.Page++
	}
}

func (s *Service) exportSurgeon(ctx context.Context, participantID uuid.UUID) (string, error) {
	links, err := s.store.Providers.LinksOf(ctx, participantID)
	if err != nil {
		return "", fmt.Errorf("list providers: %w", err)
	}
	for _, l := range links {
		if l.IsDefault {
			return fmt.Sprintf("%s (%s)", l.Name, l.ID), nil
		}
	}
	return "", nil
}

func (s *Service) exportPartner(ctx context.Context, p *models.Participant, stageName func(*uuid.UUID) (string, error)) (string, error) {
	lp, err := s.linkedPartner(ctx, p)
	if err != nil || lp == nil {
		return "", err
	}
	stage, err := stageName(lp.StageID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s - %s - (%s)", lp.Name, stage, lp.ID), nil
}

func formatAddress(a models.Address) string {
	parts := make([]string, 0, 4)
	for _, v := range []string{a.StreetAddress, a.City, a.State, a.Zip} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeaders); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

func writeXLSX(w io.Writer, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	for col, header := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(exportSheet, cell, header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		if err := f.SetCellStyle(exportSheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
	}
	for r, row := range rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(exportSheet, cell, value); err != nil {
				return fmt.Errorf("write cell %s: %w", cell, err)
			}
		}
	}
	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
