package services

import (
	"context"
	"fmt"

	"github.com/senyabanana/licitacao-service/internal/models"
)

// Action - операция, требующая полномочий.
type Action string

const (
	ActPublish            Action = "publish"
	ActScheduleOpening    Action = "schedule_opening"
	ActOpenProposals      Action = "open_proposals"
	ActStartDispute       Action = "start_dispute"
	ActEndDispute         Action = "end_dispute"
	ActPauseDispute       Action = "pause_dispute"
	ActResumeDispute      Action = "resume_dispute"
	ActStartNegotiation   Action = "start_negotiation"
	ActDeclareWinner      Action = "declare_winner"
	ActDisqualify         Action = "disqualify"
	ActOpenResourcePhase  Action = "open_resource_phase"
	ActCloseManifestation Action = "close_manifestation"
	ActJudgeResource      Action = "judge_resource"
	ActAdjudicate         Action = "adjudicate"
	ActHomologate         Action = "homologate"
	ActReturnForDiligence Action = "return_for_diligence"
	ActRevoke             Action = "revoke"
	ActCancel             Action = "cancel"
	ActPostMessage        Action = "post_message"

	ActSubmitBid       Action = "submit_bid"
	ActCancelBid       Action = "cancel_bid"
	ActManifest        Action = "manifest"
	ActSubmitResource  Action = "submit_resource"
	ActCounterArgument Action = "counter_argument"
)

// actionRoles - таблица полномочий: какая роль в закупке нужна для операции.
var actionRoles = map[Action]models.Role{
	ActPublish:            models.RoleAgency,
	ActScheduleOpening:    models.RoleAgency,
	ActOpenProposals:      models.RoleAuctioneer,
	ActStartDispute:       models.RoleAuctioneer,
	ActEndDispute:         models.RoleAuctioneer,
	ActPauseDispute:       models.RoleAuctioneer,
	ActResumeDispute:      models.RoleAuctioneer,
	ActStartNegotiation:   models.RoleAuctioneer,
	ActDeclareWinner:      models.RoleAuctioneer,
	ActDisqualify:         models.RoleAuctioneer,
	ActOpenResourcePhase:  models.RoleAuctioneer,
	ActCloseManifestation: models.RoleAuctioneer,
	ActJudgeResource:      models.RoleAuctioneer,
	ActAdjudicate:         models.RoleAuctioneer,
	ActPostMessage:        models.RoleAuctioneer,
	ActHomologate:         models.RoleAuthority,
	ActReturnForDiligence: models.RoleAuthority,
	ActRevoke:             models.RoleAuthority,
	ActCancel:             models.RoleAuthority,

	ActSubmitBid:       models.RoleSupplier,
	ActCancelBid:       models.RoleSupplier,
	ActManifest:        models.RoleSupplier,
	ActSubmitResource:  models.RoleSupplier,
	ActCounterArgument: models.RoleSupplier,
}

// oversight - операции вышестоящего органа. Аукционист закупки не выполняет их,
// даже если ему назначена и роль authority.
var oversight = map[Action]bool{
	ActHomologate:         true,
	ActReturnForDiligence: true,
	ActRevoke:             true,
	ActCancel:             true,
}

// authorize проверяет, может ли пользователь выполнить операцию в закупке tenderID.
func (b *base) authorize(ctx context.Context, actor models.Actor, action Action, tenderID string) error {
	if actor.System {
		return nil
	}
	role, ok := actionRoles[action]
	if !ok {
		return fmt.Errorf("%w: unknown action %s", models.ErrUnauthorized, action)
	}
	allowed, err := b.roles.HasRole(ctx, actor, role, tenderID)
	if err != nil {
		return fmt.Errorf("%w: role lookup: %v", models.ErrStoreFailure, err)
	}
	if !allowed {
		return fmt.Errorf("%w: %s requires role %s", models.ErrUnauthorized, action, role)
	}
	if oversight[action] {
		conducts, err := b.roles.HasRole(ctx, actor, models.RoleAuctioneer, tenderID)
		if err != nil {
			return fmt.Errorf("%w: role lookup: %v", models.ErrStoreFailure, err)
		}
		if conducts {
			return fmt.Errorf("%w: the auctioneer of %s cannot %s", models.ErrUnauthorized, tenderID, action)
		}
	}
	return nil
}

// authorizeSupplier дополнительно проверяет, что запись участника принадлежит пользователю.
func (b *base) authorizeSupplier(ctx context.Context, actor models.Actor, action Action, tenderID string, supplier *models.Supplier) error {
	if err := b.authorize(ctx, actor, action, tenderID); err != nil {
		return err
	}
	if !actor.System && supplier.AccountID != actor.ID {
		return fmt.Errorf("%w: supplier %s does not belong to %s", models.ErrUnauthorized, supplier.ID, actor.ID)
	}
	return nil
}

// isOfficial сообщает, видит ли пользователь закрытые сообщения закупки.
func (b *base) isOfficial(ctx context.Context, actor models.Actor, tenderID string) bool {
	if actor.System {
		return true
	}
	for _, role := range []models.Role{models.RoleAuctioneer, models.RoleAuthority} {
		if ok, err := b.roles.HasRole(ctx, actor, role, tenderID); err == nil && ok {
			return true
		}
	}
	return false
}
