package notifications

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/pkg/auth"
	"github.com/angelmondragon/clubledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
	"github.com/angelmondragon/clubledger-backend/pkg/metrics"
	"github.com/angelmondragon/clubledger-backend/pkg/outbox"
)

type failingEmitter struct{}

func (failingEmitter) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return errors.New("outbox unavailable")
}

func TestOutboxNotifierRecordsEvent(t *testing.T) {
	client := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}})
	notifier, err := NewOutboxNotifier(client, outbox.NewService(outbox.NewRepository(client.DB()), logg), logg, nil)
	require.NoError(t, err)

	enrollmentID := uuid.New()
	notifier.Notify(context.Background(), Notification{
		Event:       enums.EventEnrollmentApproved,
		Aggregate:   enums.AggregateEnrollment,
		AggregateID: enrollmentID,
		Actor:       auth.Actor{ID: "11111111-1", Role: enums.RoleDirectiva},
		Data:        map[string]any{"student_code": "WR2026123"},
	})

	var rows []models.OutboxEvent
	require.NoError(t, client.DB().Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, enrollmentID, rows[0].AggregateID)
	require.Equal(t, enums.EventEnrollmentApproved, rows[0].EventType)
}

func TestOutboxNotifierSwallowsFailures(t *testing.T) {
	client := dbtest.Open(t)
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	reg := prometheus.NewRegistry()
	m := metrics.NewEngineMetrics(reg)

	notifier, err := NewOutboxNotifier(client, failingEmitter{}, logg, m)
	require.NoError(t, err)

	notifier.Notify(context.Background(), Notification{
		Event:       enums.EventSaleCancelled,
		Aggregate:   enums.AggregateSale,
		AggregateID: uuid.New(),
	})

	require.True(t, strings.Contains(buf.String(), "notification dispatch failed"), buf.String())
	count, err := testutil.GatherAndCount(reg, "clubledger_notification_failures_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestNewOutboxNotifierValidatesDeps(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}})
	_, err := NewOutboxNotifier(nil, failingEmitter{}, logg, nil)
	require.Error(t, err)
	_, err = NewOutboxNotifier(dbtest.Open(t), nil, logg, nil)
	require.Error(t, err)
}
