package service_test

import (
	"context"
	"errors"
	"testing"

	repository "github.com/okian/commission/internal/adapters/repository"
	service "github.com/okian/commission/internal/app"
	"github.com/okian/commission/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			So(svc.GetStats()["started"], ShouldEqual, false)
			So(svc.ListRules(context.Background()), ShouldBeEmpty)
		})

		Convey("Then mutations are refused until started", func() {
			_, err := svc.CreateRule(context.Background(), flatRule(500), alice)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a store holding a previous session", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()

		first := service.New(service.WithStore(store), service.WithLogger(logger.Nop()))
		So(first.Start(ctx), ShouldBeNil)
		r, err := first.CreateRule(ctx, percentRule(5), alice)
		So(err, ShouldBeNil)
		_, err = first.CreateCommission(ctx, service.CreateCommissionInput{
			DealID: "deal-1", SalesPersonID: "sp-1", RuleID: r.ID, DealAmount: d(1000),
		}, alice)
		So(err, ShouldBeNil)

		Convey("When a new service starts on the same store", func() {
			second := service.New(service.WithStore(store), service.WithLogger(logger.Nop()))
			So(second.Start(ctx), ShouldBeNil)
			So(second.Start(ctx), ShouldBeNil) // idempotent

			Convey("Then the collections and trail are restored", func() {
				stats := second.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["rules"], ShouldEqual, 1)
				So(stats["commissions"], ShouldEqual, 1)
				So(stats["auditEntries"], ShouldEqual, 2)
				So(second.ListAudit(ctx, "deal-1"), ShouldHaveLength, 1)
			})
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := started()

		Convey("When stopping the service", func() {
			svc.Stop()
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}
