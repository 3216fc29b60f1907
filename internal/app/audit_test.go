package service_test

import (
	"context"
	"errors"
	"testing"

	service "github.com/okian/commission/internal/app"
	"github.com/okian/commission/internal/domain/audit"
	. "github.com/smartystreets/goconvey/convey"
)

func TestAuditNotes(t *testing.T) {
	Convey("Given a commission with some history", t, func() {
		ctx := context.Background()
		svc := started()
		r, err := svc.CreateRule(ctx, flatRule(500), alice)
		So(err, ShouldBeNil)
		c, err := svc.CreateCommission(ctx, service.CreateCommissionInput{
			DealID: "deal-5", SalesPersonID: "sp-1", RuleID: r.ID, DealAmount: d(1000),
		}, alice)
		So(err, ShouldBeNil)

		Convey("When adding a manual note to the deal", func() {
			note, err := svc.AddNote(ctx, "deal-5", bob, "customer called")

			Convey("Then it joins the deal trail", func() {
				So(err, ShouldBeNil)
				So(note.Action, ShouldEqual, audit.ActionManualNote)
				So(note.DealID, ShouldEqual, "deal-5")
				entries := svc.ListAudit(ctx, "deal-5")
				So(entries, ShouldHaveLength, 2)
				So(entries[0].ID, ShouldEqual, note.ID)
			})

			Convey("Then anyone may edit the manual note", func() {
				updated, err := svc.UpdateAuditNotes(ctx, note.ID, "customer called twice", alice)
				So(err, ShouldBeNil)
				So(updated.Notes, ShouldEqual, "customer called twice")
				got, _ := svc.GetAuditEntry(ctx, note.ID)
				So(got.Notes, ShouldEqual, "customer called twice")
				So(got.UserID, ShouldEqual, bob.ID)
			})
		})

		Convey("When adding a note to a commission or rule", func() {
			n1, err := svc.AddNote(ctx, c.ID, bob, "check split")
			So(err, ShouldBeNil)
			So(n1.DealID, ShouldEqual, "deal-5")
			n2, err := svc.AddNote(ctx, r.ID, bob, "rule reviewed")
			So(err, ShouldBeNil)
			So(n2.Scope, ShouldEqual, audit.ScopeSystem)
		})

		Convey("When the note is empty or the subject unknown", func() {
			_, err := svc.AddNote(ctx, c.ID, bob, "  ")
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
			_, err = svc.AddNote(ctx, "nothing", bob, "hello")
			So(errors.Is(err, service.ErrSubjectNotFound), ShouldBeTrue)
		})

		Convey("When editing a lifecycle entry", func() {
			created := svc.ListAudit(ctx, c.ID)[0]

			Convey("Then only its author may change the notes", func() {
				_, err := svc.UpdateAuditNotes(ctx, created.ID, "tampered", bob)
				So(errors.Is(err, service.ErrNotPermitted), ShouldBeTrue)

				updated, err := svc.UpdateAuditNotes(ctx, created.ID, "clarified", alice)
				So(err, ShouldBeNil)
				So(updated.Notes, ShouldEqual, "clarified")
				So(updated.Action, ShouldEqual, audit.ActionCreated)
				So(updated.NewValue, ShouldResemble, created.NewValue)
			})
		})

		Convey("When editing an unknown entry", func() {
			_, err := svc.UpdateAuditNotes(ctx, "missing", "x", alice)
			So(errors.Is(err, service.ErrEntryNotFound), ShouldBeTrue)
		})
	})
}
