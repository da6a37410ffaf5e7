package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/flowra-dev/flowra/db"
	"github.com/flowra-dev/flowra/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

const pushConcurrency = 8

// Event is something that happened to a task or team that one or more users
// should hear about.
type Event struct {
	Type       string
	TeamID     uint
	TaskID     uint
	ActorID    uint
	Recipients []uint
	Title      string
	Message    string
	Data       map[string]any
}

// Notifier stores in-app notifications and fans them out to web push,
// honouring each recipient's preferences.
type Notifier struct {
	push      PushSender
	clientURL string
	logger    *zap.Logger
}

func NewNotifier(push PushSender, clientURL string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{push: push, clientURL: clientURL, logger: logger}
}

// Notify returns how many recipients got an in-app notification. The actor
// never notifies themself.
func (n *Notifier) Notify(ctx context.Context, ev Event) (int, error) {
	recipients := uniqueRecipients(ev.Recipients, ev.ActorID)
	if len(recipients) == 0 {
		return 0, nil
	}

	prefs, err := loadPreferences(ctx, recipients)
	if err != nil {
		return 0, fmt.Errorf("failed to load notification preferences: %w", err)
	}

	data, err := json.Marshal(ev.Data)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal notification data: %w", err)
	}

	var rows []models.Notification
	var pushTo []uint

	for _, userID := range recipients {
		pref := prefs[userID]
		if !pref.Allows(ev.Type) {
			continue
		}

		if pref.InApp {
			row := models.Notification{
				UserID:  userID,
				Type:    ev.Type,
				Title:   ev.Title,
				Message: ev.Message,
				Data:    datatypes.JSON(data),
			}
			if ev.TeamID != 0 {
				row.TeamID = &ev.TeamID
			}
			if ev.TaskID != 0 {
				row.TaskID = &ev.TaskID
			}
			rows = append(rows, row)
		}

		if pref.Push {
			pushTo = append(pushTo, userID)
		}
	}

	if len(rows) > 0 {
		if err := db.DB.WithContext(ctx).Create(&rows).Error; err != nil {
			return 0, fmt.Errorf("failed to store notifications: %w", err)
		}
	}

	if len(pushTo) > 0 && n.push != nil {
		n.deliverPush(ctx, pushTo, n.pushMessage(ev))
	}

	return len(rows), nil
}

func (n *Notifier) pushMessage(ev Event) PushMessage {
	msg := PushMessage{
		Title: ev.Title,
		Body:  ev.Message,
		Tag:   ev.Type,
		Data:  ev.Data,
	}

	if n.clientURL != "" && ev.TeamID != 0 {
		if ev.TaskID != 0 {
			msg.URL = fmt.Sprintf("%s/teams/%d/tasks/%d", n.clientURL, ev.TeamID, ev.TaskID)
		} else {
			msg.URL = fmt.Sprintf("%s/teams/%d", n.clientURL, ev.TeamID)
		}
	}

	return msg
}

// deliverPush sends to every subscription of userIDs. Delivery failures are
// logged, never returned: in-app notifications are already stored.
func (n *Notifier) deliverPush(ctx context.Context, userIDs []uint, msg PushMessage) {
	var subs []models.PushSubscription

	if err := db.DB.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&subs).Error; err != nil {
		n.logger.Error("failed to load push subscriptions", zap.Error(err))
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pushConcurrency)

	for _, sub := range subs {
		sub := sub // per-iteration copy (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			err := n.push.Send(gctx, sub, msg)

			switch {
			case err == nil:
			case errors.Is(err, ErrSubscriptionGone):
				if delErr := db.DB.WithContext(ctx).Delete(&models.PushSubscription{}, sub.ID).Error; delErr != nil {
					n.logger.Warn("failed to delete expired push subscription", zap.Uint("subscription_id", sub.ID), zap.Error(delErr))
				} else {
					n.logger.Info("removed expired push subscription", zap.Uint("user_id", sub.UserID))
				}
			default:
				n.logger.Warn("push delivery failed", zap.Uint("user_id", sub.UserID), zap.Error(err))
			}

			return nil
		})
	}

	_ = g.Wait()
}

func uniqueRecipients(ids []uint, actorID uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))

	for _, id := range ids {
		if id == 0 || id == actorID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	return out
}

// loadPreferences returns a preference for every user, falling back to the
// defaults for users who never saved any.
func loadPreferences(ctx context.Context, userIDs []uint) (map[uint]models.NotificationPreference, error) {
	var stored []models.NotificationPreference

	if err := db.DB.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&stored).Error; err != nil {
		return nil, err
	}

	prefs := make(map[uint]models.NotificationPreference, len(userIDs))
	for _, id := range userIDs {
		prefs[id] = models.DefaultNotificationPreference(id)
	}
	for _, p := range stored {
		prefs[p.UserID] = p
	}

	return prefs, nil
}
