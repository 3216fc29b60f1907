package audit_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/okian/commission/internal/domain/audit"
	. "github.com/smartystreets/goconvey/convey"
)

func stepClock(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return start.Add(time.Duration(n) * time.Second)
	}
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("entry-%d", n)
	}
}

func TestLog(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	Convey("Given an empty audit log", t, func() {
		log := audit.NewLog(nil, audit.WithClock(stepClock(start)), audit.WithIDGenerator(seqIDs()))

		Convey("When appending an entry without id or timestamp", func() {
			e := log.Append(audit.Entry{SubjectID: "c1", DealID: "deal-1", Action: audit.ActionCreated})
			Convey("Then both are assigned", func() {
				So(e.ID, ShouldEqual, "entry-1")
				So(e.Timestamp, ShouldEqual, start.Add(time.Second))
				So(e.Scope, ShouldEqual, audit.ScopeCommission)
				So(log.Len(), ShouldEqual, 1)
			})
		})

		Convey("When appending several entries for a deal", func() {
			log.Append(audit.Entry{SubjectID: "c1", DealID: "deal-1", Action: audit.ActionCreated})
			log.Append(audit.Entry{SubjectID: "c2", DealID: "deal-2", Action: audit.ActionCreated})
			log.Append(audit.Entry{SubjectID: "c1", DealID: "deal-1", Action: audit.ActionApproved})
			log.Append(audit.Entry{SubjectID: "c1", DealID: "deal-1", Action: audit.ActionPaid})

			Convey("Then listing by deal returns them newest first", func() {
				got := log.ListBySubject("deal-1")
				So(len(got), ShouldEqual, 3)
				So(got[0].Action, ShouldEqual, audit.ActionPaid)
				So(got[1].Action, ShouldEqual, audit.ActionApproved)
				So(got[2].Action, ShouldEqual, audit.ActionCreated)
			})

			Convey("Then listing by commission id matches too", func() {
				So(len(log.ListBySubject("c1")), ShouldEqual, 3)
				So(len(log.ListBySubject("c2")), ShouldEqual, 1)
				So(log.ListBySubject("missing"), ShouldBeEmpty)
			})
		})

		Convey("When entries carry explicit out-of-order timestamps", func() {
			log.Append(audit.Entry{SubjectID: "s", Action: audit.ActionCreated, Timestamp: start.Add(time.Hour)})
			log.Append(audit.Entry{SubjectID: "s", Action: audit.ActionUpdated, Timestamp: start})
			got := log.ListBySubject("s")
			Convey("Then ordering follows the timestamp", func() {
				So(got[0].Action, ShouldEqual, audit.ActionCreated)
				So(got[1].Action, ShouldEqual, audit.ActionUpdated)
			})
		})

		Convey("When updating notes", func() {
			e := log.Append(audit.Entry{SubjectID: "c1", Action: audit.ActionManualNote, Notes: "first"})
			updated, ok := log.UpdateNotes(e.ID, "second")

			Convey("Then only the notes change", func() {
				So(ok, ShouldBeTrue)
				So(updated.Notes, ShouldEqual, "second")
				So(updated.Timestamp, ShouldEqual, e.Timestamp)
				got, _ := log.Get(e.ID)
				So(got.Notes, ShouldEqual, "second")
			})

			Convey("Then an unknown id reports not found", func() {
				_, ok := log.UpdateNotes("nope", "x")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When a returned entry is modified by the caller", func() {
			e := log.Append(audit.Entry{SubjectID: "c1", Action: audit.ActionCreated, NewValue: audit.Snapshot(map[string]string{"status": "PENDING"})})
			e.NewValue[0] = 'x'
			e.Notes = "tampered"
			Convey("Then the stored entry is unchanged", func() {
				got, _ := log.Get(e.ID)
				So(got.Notes, ShouldBeEmpty)
				var v map[string]string
				So(json.Unmarshal(got.NewValue, &v), ShouldBeNil)
				So(v["status"], ShouldEqual, "PENDING")
			})
		})

		Convey("When cloning the log", func() {
			log.Append(audit.Entry{SubjectID: "c1", Action: audit.ActionCreated})
			cp := log.Clone()
			cp.Append(audit.Entry{SubjectID: "c1", Action: audit.ActionApproved})
			Convey("Then the original is unaffected", func() {
				So(log.Len(), ShouldEqual, 1)
				So(cp.Len(), ShouldEqual, 2)
			})
		})
	})

	Convey("Given a log rebuilt from stored entries", t, func() {
		stored := []audit.Entry{{ID: "a", SubjectID: "r1", Scope: audit.ScopeSystem, Action: audit.ActionCreated, Timestamp: start}}
		log := audit.NewLog(stored)
		Convey("Then the entries are addressable", func() {
			got, ok := log.Get("a")
			So(ok, ShouldBeTrue)
			So(got.Scope, ShouldEqual, audit.ScopeSystem)
			So(log.Entries(), ShouldHaveLength, 1)
		})
	})
}

func TestSnapshot(t *testing.T) {
	Convey("Given values to snapshot", t, func() {
		So(audit.Snapshot(nil), ShouldBeNil)
		So(string(audit.Snapshot(map[string]string{"status": "PAID"})), ShouldEqual, `{"status":"PAID"}`)
		So(audit.Snapshot(make(chan int)), ShouldBeNil)
	})
}
