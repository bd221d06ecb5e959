package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	service "github.com/okian/scoutstat/internal/app"
	"github.com/okian/scoutstat/internal/domain/epa"
	"github.com/okian/scoutstat/internal/domain/match"
	"github.com/okian/scoutstat/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

const (
	inWindow    = epa.BootstrapStart + 3600
	afterWindow = epa.BootstrapEnd + 3600
)

// memRepo serves a fixed season. Event-scoped team lookups block on gate
// when it is set, which holds OPR workers without touching the EPA replay.
type memRepo struct {
	g       *match.Grouper
	err     error
	gate    chan struct{}
	entered chan struct{}
}

func newMemRepo() *memRepo {
	r := &memRepo{g: match.NewGrouper()}
	r.game(1, inWindow, 300, 400, 100, 200)
	r.game(2, afterWindow, 100, 200, 80, 60)
	return r
}

func (r *memRepo) game(number int, start int64, red, blue int, redTotal, blueTotal float64) {
	for a, side := range map[match.Alliance]struct {
		team  int
		total float64
	}{match.Red: {red, redTotal}, match.Blue: {blue, blueTotal}} {
		k := match.Key{
			ID:        match.ID{EventCode: "EVT", Level: match.Qualification, Number: number, Alliance: a, Season: 2024},
			StartTime: start,
		}
		r.g.AddTeam(k, side.team, match.Slot{Station: string(a) + "1", OnField: true})
		r.g.AddScore(k, match.TotalPoints, side.total)
	}
}

func (r *memRepo) MatchTeams(ctx context.Context, eventCode string, _ int) (match.TeamMatches, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.gate != nil && eventCode != "" {
		select {
		case r.entered <- struct{}{}:
		default:
		}
		select {
		case <-r.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.g.TeamMatches(), nil
}

func (r *memRepo) MatchScores(_ context.Context, _ string, _ int) (match.ScoreMatches, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.g.ScoreMatches(), nil
}

func startService(repo match.Repository, opts ...service.Option) *service.Service {
	svc, err := service.New(repo, opts...)
	So(err, ShouldBeNil)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func TestService_New(t *testing.T) {
	Convey("Given no repository", t, func() {
		_, err := service.New(nil)

		Convey("Then construction fails", func() {
			So(errors.Is(err, service.ErrNilRepo), ShouldBeTrue)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc, err := service.New(newMemRepo(),
			service.WithWorkerCount(4),
			service.WithQueueSize(16),
			service.WithSeason(2024),
			service.WithOPRTimeout(time.Second),
		)

		Convey("Then it reports its configuration before starting", func() {
			So(err, ShouldBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["ready"], ShouldEqual, false)
			So(stats["workerCount"], ShouldEqual, 4)
			So(stats["queueSize"], ShouldEqual, 16)
		})

		Convey("Then queries fail until it is started", func() {
			_, err := svc.GetEPA(context.Background(), 100, nil)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.CalcSingleStatOPR(context.Background(), "EVT", match.TotalPoints, 2024)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(errors.Is(svc.WaitReady(context.Background()), service.ErrNotStarted), ShouldBeTrue)
		})
	})
}

func TestService_EPA(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startService(newMemRepo(), service.WithWorkerCount(1))
		defer svc.Stop()
		ctx := context.Background()

		So(svc.WaitReady(ctx), ShouldBeNil)
		So(svc.Ready(), ShouldBeTrue)

		Convey("Then current ratings reflect the replayed season", func() {
			r, err := svc.GetEPA(ctx, 100, nil)
			So(err, ShouldBeNil)
			So(r, ShouldAlmostEqual, 52.88)
			r, err = svc.GetEPA(ctx, 200, nil)
			So(err, ShouldBeNil)
			So(r, ShouldAlmostEqual, 47.12)
		})

		Convey("Then point-in-time ratings follow the history", func() {
			before := int64(inWindow)
			r, err := svc.GetEPA(ctx, 100, &before)
			So(err, ShouldBeNil)
			So(r, ShouldEqual, 0)

			after := int64(afterWindow)
			r, err = svc.GetEPA(ctx, 100, &after)
			So(err, ShouldBeNil)
			So(r, ShouldAlmostEqual, 52.88)

			all, err := svc.GetAllEPAs(ctx, 100)
			So(err, ShouldBeNil)
			So(len(all), ShouldEqual, 1)
			So(all[afterWindow], ShouldAlmostEqual, 52.88)
		})

		Convey("Then teams are ranked by rating", func() {
			ranks, err := svc.GetRanks(ctx)
			So(err, ShouldBeNil)
			So(len(ranks), ShouldEqual, 4)
			So(ranks[400].Rank, ShouldEqual, 1)
			So(ranks[100].Rank, ShouldEqual, 2)
			So(ranks[200].Rank, ShouldEqual, 3)
			So(ranks[300].Rank, ShouldEqual, 4)

			top, err := svc.TopN(ctx, 2)
			So(err, ShouldBeNil)
			So(len(top), ShouldEqual, 2)
			So(top[0].Team, ShouldEqual, 400)
			So(top[1].Team, ShouldEqual, 100)

			entry, err := svc.Rank(ctx, 200)
			So(err, ShouldBeNil)
			So(entry.Rank, ShouldEqual, 3)
			So(entry.Rating, ShouldAlmostEqual, 47.12)

			_, err = svc.Rank(ctx, 999)
			So(errors.Is(err, epa.ErrUnrankedTeam), ShouldBeTrue)
		})

		Convey("Then stats describe the published run", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["ready"], ShouldEqual, true)
			So(stats["replayedMatches"], ShouldEqual, 2)
			So(stats["teams"], ShouldEqual, 4)
			So(stats["run"], ShouldNotBeEmpty)
		})
	})

	Convey("Given a season with an empty bootstrap window", t, func() {
		repo := &memRepo{g: match.NewGrouper()}
		repo.game(1, afterWindow, 100, 200, 80, 60)
		svc := startService(repo, service.WithWorkerCount(1))
		defer svc.Stop()

		Convey("Then readiness reports the replay error", func() {
			err := svc.WaitReady(context.Background())
			So(errors.Is(err, epa.ErrEmptyBootstrapWindow), ShouldBeTrue)
			So(svc.Ready(), ShouldBeFalse)

			_, err = svc.GetRanks(context.Background())
			So(errors.Is(err, service.ErrNotReady), ShouldBeTrue)
			So(errors.Is(err, epa.ErrEmptyBootstrapWindow), ShouldBeTrue)
			So(svc.GetStats()["replayError"], ShouldNotBeEmpty)
		})
	})
}

func TestService_OPR(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startService(newMemRepo(), service.WithWorkerCount(2))
		defer svc.Stop()
		ctx := context.Background()

		Convey("When computing total points OPR", func() {
			got, err := svc.CalcSingleStatOPR(ctx, "EVT", match.TotalPoints, 2024)

			Convey("Then each team is credited with its alliance score", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 4)
				So(got[100], ShouldAlmostEqual, 80.0, 1e-9)
				So(got[200], ShouldAlmostEqual, 60.0, 1e-9)
				So(got[300], ShouldAlmostEqual, 100.0, 1e-9)
				So(got[400], ShouldAlmostEqual, 200.0, 1e-9)
			})
		})

		Convey("When the statistic is unknown", func() {
			_, err := svc.CalcSingleStatOPR(ctx, "EVT", "totalPoint", 2024)

			Convey("Then it is rejected before queuing", func() {
				So(errors.Is(err, match.ErrUnknownStatistic), ShouldBeTrue)
			})
		})

		Convey("When the season is unsupported", func() {
			_, err := svc.CalcSingleStatOPR(ctx, "EVT", match.TotalPoints, 2023)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, match.ErrUnsupportedSeason), ShouldBeTrue)
			})
		})
	})

	Convey("Given a single blocked worker and a one slot queue", t, func() {
		repo := newMemRepo()
		repo.gate = make(chan struct{})
		repo.entered = make(chan struct{}, 1)
		svc := startService(repo, service.WithWorkerCount(1), service.WithQueueSize(1))
		defer svc.Stop()
		ctx := context.Background()

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.CalcSingleStatOPR(ctx, "EVT", match.TotalPoints, 2024)
		}()
		<-repo.entered

		const callers = 5
		errs := make(chan error, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.CalcSingleStatOPR(ctx, "EVT", match.TotalPoints, 2024)
				errs <- err
			}()
		}

		// Accepted callers wait on the gate; rejected ones return at once.
		rejected := 0
		for rejected < callers-2 {
			if errors.Is(<-errs, service.ErrBackpressure) {
				rejected++
			}
		}
		close(repo.gate)
		wg.Wait()

		Convey("Then excess callers see backpressure", func() {
			So(rejected, ShouldBeGreaterThanOrEqualTo, callers-2)
		})
	})

	Convey("Given a worker slower than the caller's patience", t, func() {
		repo := newMemRepo()
		repo.gate = make(chan struct{})
		repo.entered = make(chan struct{}, 1)
		svc := startService(repo, service.WithWorkerCount(1), service.WithOPRTimeout(50*time.Millisecond))
		defer svc.Stop()
		defer close(repo.gate)

		_, err := svc.CalcSingleStatOPR(context.Background(), "EVT", match.TotalPoints, 2024)

		Convey("Then the call times out", func() {
			So(errors.Is(err, service.ErrTimeout), ShouldBeTrue)
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startService(newMemRepo(), service.WithWorkerCount(1))
		So(svc.WaitReady(context.Background()), ShouldBeNil)

		Convey("When stopping the service", func() {
			svc.Stop()
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, false)
				_, err := svc.CalcSingleStatOPR(context.Background(), "EVT", match.TotalPoints, 2024)
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})

	Convey("Given a service restarted after its repository broke", t, func() {
		repo := newMemRepo()
		svc := startService(repo, service.WithWorkerCount(1))
		So(svc.WaitReady(context.Background()), ShouldBeNil)
		_, err := svc.GetEPA(context.Background(), 100, nil)
		So(err, ShouldBeNil)

		svc.Stop()
		repo.err = errors.New("database is locked")
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("Then ratings of the earlier run are no longer served", func() {
			So(errors.Is(svc.WaitReady(context.Background()), repo.err), ShouldBeTrue)
			So(svc.Ready(), ShouldBeFalse)

			_, err := svc.GetEPA(context.Background(), 100, nil)
			So(errors.Is(err, service.ErrNotReady), ShouldBeTrue)
			_, err = svc.GetRanks(context.Background())
			So(errors.Is(err, service.ErrNotReady), ShouldBeTrue)
			So(svc.GetStats()["replayedMatches"], ShouldEqual, 0)
		})
	})
}
