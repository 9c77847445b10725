package models

import "context"

type DashboardStats struct {
	TotalKeys      int            `json:"total_keys"`
	CheckedOut     int            `json:"checked_out"`
	Available      int            `json:"available"`
	Overdue        int            `json:"overdue"`
	NeedsAttention int            `json:"needs_attention"`
	PendingRepairs int64          `json:"pending_repairs"`
	ByAlertTier    map[string]int `json:"by_alert_tier"`
	ByPdiStatus    map[string]int `json:"by_pdi_status"`
}

func (l *KeyLifecycle) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	views, err := l.ListKeyViews(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := l.storeFor(actor).CountPendingRepairRequests(ctx, actor.DealershipId)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		TotalKeys:      len(views),
		PendingRepairs: pending,
		ByAlertTier:    map[string]int{},
		ByPdiStatus:    map[string]int{},
	}
	for _, view := range views {
		if view.Status == KeyStatusCheckedOut {
			stats.CheckedOut++
		} else {
			stats.Available++
		}
		if view.AlertTier != AlertTierGreen {
			stats.Overdue++
		}
		if view.Key.AttentionStatus == AttentionStatusNeeds {
			stats.NeedsAttention++
		}
		stats.ByAlertTier[string(view.AlertTier)]++
		stats.ByPdiStatus[string(view.Key.PdiStatus)]++
	}
	return stats, nil
}

// ServiceBay is one occupied bay on the service board.
type ServiceBay struct {
	Bay  string  `json:"bay"`
	View KeyView `json:"view"`
}

// ServiceBays lists keys currently out for service, one entry per occupied
// bay, longest-out first within the natural bay order.
func (l *KeyLifecycle) ServiceBays(ctx context.Context) ([]ServiceBay, error) {
	views, err := l.ListKeyViews(ctx)
	if err != nil {
		return nil, err
	}

	var board []ServiceBay
	for _, view := range views {
		if view.OpenSession == nil || view.OpenSession.Reason != CheckoutReasonService {
			continue
		}
		bay := ""
		if view.OpenSession.Bay != nil {
			bay = *view.OpenSession.Bay
		}
		board = append(board, ServiceBay{Bay: bay, View: view})
	}
	return board, nil
}
