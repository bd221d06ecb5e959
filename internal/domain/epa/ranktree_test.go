package epa

import (
	"sort"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRankTree(t *testing.T) {
	Convey("Given a rank tree", t, func() {
		rt := newRankTree()

		Convey("When inserting ratings", func() {
			rt.upsert(5, 10)
			rt.upsert(3, 30)
			rt.upsert(9, 20)
			rt.upsert(1, 20)

			Convey("Then positions follow rating desc then team asc", func() {
				So(rt.len(), ShouldEqual, 4)
				So(rt.rankOf(3), ShouldEqual, 1)
				So(rt.rankOf(1), ShouldEqual, 2)
				So(rt.rankOf(9), ShouldEqual, 3)
				So(rt.rankOf(5), ShouldEqual, 4)
				So(rt.rankOf(42), ShouldEqual, 0)
			})

			Convey("And updating moves a team", func() {
				rt.upsert(5, 99)
				rt.upsert(5, 99)
				So(rt.len(), ShouldEqual, 4)
				So(rt.rankOf(5), ShouldEqual, 1)
				So(rt.rankOf(3), ShouldEqual, 2)
			})

			Convey("And walk can stop early", func() {
				var seen []int
				rt.walk(func(rank, team int, _ float64) bool {
					seen = append(seen, team)
					return rank < 2
				})
				So(seen, ShouldResemble, []int{3, 1})
			})
		})

		Convey("When many teams churn", func() {
			want := map[int]float64{}
			for i := 0; i < 500; i++ {
				team := i % 97
				rating := float64((i * 37) % 101)
				rt.upsert(team, rating)
				want[team] = rating
			}

			Convey("Then traversal matches a full sort", func() {
				type pair struct {
					team   int
					rating float64
				}
				var exp []pair
				for team, r := range want {
					exp = append(exp, pair{team, r})
				}
				sort.Slice(exp, func(i, j int) bool {
					return less(exp[i].rating, exp[i].team, exp[j].rating, exp[j].team)
				})

				var got []pair
				rt.walk(func(rank, team int, rating float64) bool {
					got = append(got, pair{team, rating})
					So(rt.rankOf(team), ShouldEqual, rank)
					return true
				})
				So(len(got), ShouldEqual, len(exp))
				So(got, ShouldResemble, exp)
			})
		})
	})
}
