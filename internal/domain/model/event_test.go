package model_test

import (
	"testing"
	"time"

	model "github.com/okian/episodecam/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestParseSeverity(t *testing.T) {
	convey.Convey("Given severity strings", t, func() {
		convey.Convey("When they use any case or the warn alias", func() {
			convey.Convey("Then they map to a severity", func() {
				for in, want := range map[string]model.Severity{
					"info":     model.SeverityInfo,
					"WARN":     model.SeverityWarning,
					" warning": model.SeverityWarning,
					"Error":    model.SeverityError,
					"critical": model.SeverityCritical,
				} {
					got, err := model.ParseSeverity(in)
					convey.So(err, convey.ShouldBeNil)
					convey.So(got, convey.ShouldEqual, want)
				}
			})
		})

		convey.Convey("When the string is unknown", func() {
			_, err := model.ParseSeverity("loud")

			convey.Convey("Then an error is returned", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestEpisodeRecord(t *testing.T) {
	convey.Convey("Given an episode record", t, func() {
		rec := model.EpisodeRecord{EpisodeID: "ep_1", StartTime: time.Unix(0, 0)}

		convey.Convey("When it has no end time", func() {
			convey.Convey("Then it is open", func() {
				convey.So(rec.Closed(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When an end time is set", func() {
			end := rec.StartTime.Add(time.Minute)
			rec.EndTime = &end

			convey.Convey("Then it is closed", func() {
				convey.So(rec.Closed(), convey.ShouldBeTrue)
			})
		})
	})
}
