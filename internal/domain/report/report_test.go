package report_test

import (
	"testing"
	"time"

	"github.com/okian/commission/internal/domain/commission"
	"github.com/okian/commission/internal/domain/report"
	"github.com/okian/commission/internal/domain/rule"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func item(status commission.Status, kind rule.Kind, amount int64, created time.Time) commission.Commission {
	return commission.Commission{
		ID:            string(status) + created.String(),
		SalesPersonID: "sp-1",
		Status:        status,
		RuleKind:      kind,
		Amount:        decimal.NewFromInt(amount),
		CreatedAt:     created,
	}
}

func TestSummarize(t *testing.T) {
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	Convey("Given commissions in every status", t, func() {
		items := []commission.Commission{
			item(commission.StatusPending, rule.KindPercentage, 100, day),
			item(commission.StatusApproved, rule.KindFlat, 200, day),
			item(commission.StatusPaid, rule.KindPercentage, 300, day),
			item(commission.StatusCancelled, rule.KindTiered, 400, day),
		}

		s := report.Summarize(items)

		Convey("Then amounts are grouped by status", func() {
			So(s.Count, ShouldEqual, 4)
			So(s.TotalAmount.Equal(decimal.NewFromInt(600)), ShouldBeTrue)
			So(s.PendingAmount.Equal(decimal.NewFromInt(100)), ShouldBeTrue)
			So(s.ApprovedAmount.Equal(decimal.NewFromInt(200)), ShouldBeTrue)
			So(s.PaidAmount.Equal(decimal.NewFromInt(300)), ShouldBeTrue)
			So(s.CancelledAmount.Equal(decimal.NewFromInt(400)), ShouldBeTrue)
		})

		Convey("Then counts and per-kind totals are reported", func() {
			So(s.CountByStatus[commission.StatusPending], ShouldEqual, 1)
			So(s.CountByStatus[commission.StatusCancelled], ShouldEqual, 1)
			So(s.AmountByKind[rule.KindPercentage].Equal(decimal.NewFromInt(400)), ShouldBeTrue)
			_, hasTiered := s.AmountByKind[rule.KindTiered]
			So(hasTiered, ShouldBeFalse)
		})
	})

	Convey("Given no commissions", t, func() {
		s := report.Summarize(nil)
		So(s.Count, ShouldEqual, 0)
		So(s.TotalAmount.IsZero(), ShouldBeTrue)
		So(s.CountByStatus[commission.StatusPaid], ShouldEqual, 0)
	})
}

func TestFilter(t *testing.T) {
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	c := item(commission.StatusPending, rule.KindFlat, 10, day)
	c.DealID = "deal-1"

	Convey("Given a filter", t, func() {
		So(report.Filter{}.Match(c), ShouldBeTrue)
		So(report.Filter{Status: commission.StatusPaid}.Match(c), ShouldBeFalse)
		So(report.Filter{SalesPersonID: "sp-1", DealID: "deal-1"}.Match(c), ShouldBeTrue)
		So(report.Filter{RuleKind: rule.KindTiered}.Match(c), ShouldBeFalse)
		So(report.Filter{From: day, To: day}.Match(c), ShouldBeTrue)
		So(report.Filter{From: day.Add(time.Second)}.Match(c), ShouldBeFalse)
		So(report.Filter{To: day.Add(-time.Second)}.Match(c), ShouldBeFalse)
	})
}
