package roster

import (
	"context"
	"errors"
	"log/slog"

	"sitepresence/internal/bootstrap/logging"
	"sitepresence/internal/errs"
	"sitepresence/internal/ports"
)

type ImportResult struct {
	SiteID   string
	Upserted int
	Removed  int64
}

// Service loads site rosters from TOML files.
type Service struct {
	writer ports.RosterWriter
	uow    ports.UnitOfWork
}

func NewService(writer ports.RosterWriter, uow ports.UnitOfWork) *Service {
	return &Service{writer: writer, uow: uow}
}

// Import upserts the site and its members in one transaction. With prune,
// members missing from the file leave the roster; their records are kept.
func (s *Service) Import(ctx context.Context, path string, prune bool) (ImportResult, error) {
	if ctx == nil {
		return ImportResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ImportResult{}, errs.Wrap(err, "check context")
	}

	file, err := loadRosterFile(path)
	if err != nil {
		return ImportResult{}, errs.Wrap(err, "load roster file")
	}

	result := ImportResult{SiteID: file.Site.ID}
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.writer.UpsertSite(txCtx, ports.Site{
			SiteID:   file.Site.ID,
			Name:     file.Site.Name,
			Timezone: file.Site.Timezone,
		}); err != nil {
			return err
		}

		keep := make([]string, 0, len(file.Members))
		for _, member := range file.Members {
			if err := s.writer.UpsertMember(txCtx, ports.RosterMember{
				SiteID:    file.Site.ID,
				SubjectID: member.ID,
				Name:      member.Name,
				Role:      member.Role,
			}); err != nil {
				return err
			}
			keep = append(keep, member.ID)
			result.Upserted++
		}

		if prune {
			removed, err := s.writer.RemoveMembersExcept(txCtx, file.Site.ID, keep)
			if err != nil {
				return err
			}
			result.Removed = removed
		}
		return nil
	}); err != nil {
		return ImportResult{}, err
	}

	logging.Info(logging.WithComponent(ctx, "usecase.roster"), "roster imported",
		slog.String("site_id", result.SiteID),
		slog.Int("upserted", result.Upserted),
		slog.Int64("removed", result.Removed),
	)
	return result, nil
}
