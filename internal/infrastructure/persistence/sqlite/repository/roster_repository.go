package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm/clause"

	"sitepresence/internal/errs"
	"sitepresence/internal/infrastructure/persistence/sqlite/model"
	"sitepresence/internal/ports"
)

func (r *AttendanceRepository) ListRoster(ctx context.Context, siteID string) ([]ports.RosterMember, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.RosterMember
	if err := db.
		Where("site_id = ?", strings.TrimSpace(siteID)).
		Order("subject_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query roster")
	}

	members := make([]ports.RosterMember, 0, len(rows))
	for _, row := range rows {
		members = append(members, ports.RosterMember{
			SiteID:    row.SiteID,
			SubjectID: row.SubjectID,
			Name:      row.Name,
			Role:      row.Role,
		})
	}
	return members, nil
}

func (r *AttendanceRepository) UpsertSite(ctx context.Context, site ports.Site) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(site.SiteID) == "" {
		return errors.New("site id is required")
	}

	row := model.Site{
		SiteID:    strings.TrimSpace(site.SiteID),
		Name:      strings.TrimSpace(site.Name),
		Timezone:  strings.TrimSpace(site.Timezone),
		UpdatedAt: r.now().UTC(),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "site_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "timezone", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return errs.Wrapf(err, "upsert site %s", row.SiteID)
	}
	return nil
}

func (r *AttendanceRepository) UpsertMember(ctx context.Context, member ports.RosterMember) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(member.SiteID) == "" || strings.TrimSpace(member.SubjectID) == "" {
		return errors.New("site id and subject id are required")
	}

	row := model.RosterMember{
		SiteID:    strings.TrimSpace(member.SiteID),
		SubjectID: strings.TrimSpace(member.SubjectID),
		Name:      strings.TrimSpace(member.Name),
		Role:      strings.TrimSpace(member.Role),
		UpdatedAt: r.now().UTC(),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "site_id"}, {Name: "subject_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "role", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return errs.Wrapf(err, "upsert roster member %s/%s", row.SiteID, row.SubjectID)
	}
	return nil
}

// RemoveMembersExcept drops roster membership only; the subjects' records stay.
func (r *AttendanceRepository) RemoveMembersExcept(ctx context.Context, siteID string, keepSubjectIDs []string) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	query := db.Where("site_id = ?", strings.TrimSpace(siteID))
	if len(keepSubjectIDs) > 0 {
		query = query.Where("subject_id NOT IN ?", keepSubjectIDs)
	}
	result := query.Delete(&model.RosterMember{})
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "remove roster members")
	}
	return result.RowsAffected, nil
}
