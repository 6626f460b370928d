package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/creditrail/creditgate/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultListLimit = 50

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, entry auditdomain.CreditCheckAudit) {
	if entry.ID == 0 {
		entry.ID = s.genID.Generate()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write credit check audit",
			zap.String("oauth_provider", entry.OAuthProvider),
			zap.String("external_id", entry.ExternalID),
			zap.Error(err),
		)
	}
}

func (s *Service) List(ctx context.Context, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.EndAt.Before(*req.StartAt) {
		return auditdomain.ListResponse{}, auditdomain.ErrInvalidTimeRange
	}
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = defaultListLimit
	}

	rows, err := s.repo.List(ctx, s.db, req)
	if err != nil {
		return auditdomain.ListResponse{}, err
	}

	resp := auditdomain.ListResponse{}
	for i, row := range rows {
		if i == req.Limit {
			resp.NextCursor = &auditdomain.Cursor{
				CreatedAt: resp.Entries[len(resp.Entries)-1].CreatedAt,
				ID:        resp.Entries[len(resp.Entries)-1].ID,
			}
			break
		}
		resp.Entries = append(resp.Entries, *row)
	}
	return resp, nil
}
