package importer

import (
	"context"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/metrics"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/model"
)

func TestCoordinator_Run(t *testing.T) {
	Convey("Given a period folder with mixed spreadsheets", t, func() {
		dir := t.TempDir()
		var files []string
		for i := 0; i < 22; i++ {
			code := fmt.Sprintf("E%02d", 21-i)
			files = append(files, writeStatement(t, dir, code+".xlsx", statementRows(code, "Rupiah")))
		}
		files = append(files, writeStatement(t, dir, "OLD.xlsx", statementRows("OLD", "Rupiah")))
		files = append(files, writeStatement(t, dir, "nocode.xlsx", [][2]any{{"Jumlah aset", "1"}}))
		files = append(files, writeBroken(t, dir, "broken.xlsx"))

		c := NewCoordinator(WithMetrics(metrics.NewManager()))
		opts := ExtractOptions{
			Files:         files,
			Rate:          15000,
			Existing:      map[string]struct{}{"OLD": {}},
			Workers:       4,
			ProgressEvery: 10,
		}

		Convey("When extraction runs", func() {
			var progress []Tally
			var fileErrors int
			report, err := c.Run(context.Background(), opts, func(evt ProgressEvent) {
				switch evt.Type {
				case "progress":
					progress = append(progress, evt.Data.(Tally))
				case "file_error":
					fileErrors++
				}
			})

			Convey("Then tallies add up", func() {
				So(err, ShouldBeNil)
				So(report.Total, ShouldEqual, 25)
				So(report.Processed, ShouldEqual, 25)
				So(report.New, ShouldEqual, 22)
				So(report.Skipped, ShouldEqual, 1)
				So(report.Failed, ShouldEqual, 2)
				So(report.New+report.Skipped+report.Failed, ShouldEqual, report.Processed)
			})

			Convey("Then failures name their files", func() {
				So(report.Failures, ShouldHaveLength, 2)
				So(report.Failures[0].File, ShouldEqual, "broken.xlsx")
				So(report.Failures[1].File, ShouldEqual, "nocode.xlsx")
				So(fileErrors, ShouldEqual, 2)
			})

			Convey("Then records are ordered by entity code", func() {
				So(report.Records, ShouldHaveLength, 22)
				So(report.Records[0].EntityCode, ShouldEqual, "E00")
				So(report.Records[21].EntityCode, ShouldEqual, "E21")
				So(report.Records[0].Value(model.TotalAssets), ShouldEqual, 5e9)
			})

			Convey("Then progress is reported every 10 files and at the end", func() {
				So(len(progress), ShouldEqual, 3)
				So(progress[len(progress)-1].Processed, ShouldEqual, 25)
			})
		})
	})
}

func TestCoordinator_EmptyInput(t *testing.T) {
	Convey("Given no files", t, func() {
		c := NewCoordinator()
		report, err := c.Run(context.Background(), ExtractOptions{}, nil)

		Convey("Then an empty report is returned", func() {
			So(err, ShouldBeNil)
			So(report.Processed, ShouldEqual, 0)
			So(report.Records, ShouldBeEmpty)
		})
	})
}

func TestCoordinator_Cancelled(t *testing.T) {
	Convey("Given a cancelled context", t, func() {
		dir := t.TempDir()
		files := []string{writeStatement(t, dir, "A.xlsx", statementRows("A", "Rupiah"))}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewCoordinator().Run(ctx, ExtractOptions{Files: files}, nil)

		Convey("Then the run reports the cancellation", func() {
			So(err, ShouldEqual, context.Canceled)
		})
	})
}

func TestCoordinator_FileErrorsDelivered(t *testing.T) {
	Convey("Given more broken files than the progress buffer holds", t, func() {
		dir := t.TempDir()
		const broken = 130
		var files []string
		for i := 0; i < broken; i++ {
			files = append(files, writeBroken(t, dir, fmt.Sprintf("bad%03d.xlsx", i)))
		}

		events := NewCoordinator().Extract(context.Background(), ExtractOptions{
			Files:         files,
			Workers:       4,
			ProgressEvery: 1000,
		})
		// 消费方迟到，生产方需等待而不是丢弃
		time.Sleep(200 * time.Millisecond)

		fileErrors := 0
		var report *Report
		for evt := range events {
			switch evt.Type {
			case "file_error":
				fileErrors++
			case "done":
				report, _ = evt.Data.(*Report)
			}
		}

		Convey("Then every failure is reported as an event", func() {
			So(report, ShouldNotBeNil)
			So(report.Failed, ShouldEqual, broken)
			So(fileErrors, ShouldEqual, broken)
		})
	})
}
