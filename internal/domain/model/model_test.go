package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	model "github.com/okian/bullbear/internal/domain/model"
	"github.com/shopspring/decimal"
	"github.com/smartystreets/goconvey/convey"
)

func TestGuesserAccuracy(t *testing.T) {
	convey.Convey("Given a guesser", t, func() {
		convey.Convey("When nothing was guessed yet", func() {
			g := model.Guesser{Handle: "@fresh"}

			convey.Convey("Then accuracy is exactly zero", func() {
				convey.So(g.Accuracy(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When seven of ten guesses were correct", func() {
			g := model.Guesser{TotalGuesses: 10, CorrectGuesses: 7}

			convey.Convey("Then accuracy is a percentage", func() {
				convey.So(g.Accuracy(), convey.ShouldAlmostEqual, 70.0)
			})
		})
	})
}

func TestPostResolve(t *testing.T) {
	convey.Convey("Given an unresolved post", t, func() {
		p := model.Post{ID: "p-1", PriceBefore: decimal.RequireFromString("4200.50")}
		convey.So(p.Resolved(), convey.ShouldBeFalse)
		convey.So(p.Outcome, convey.ShouldEqual, model.Unresolved)

		convey.Convey("When it is resolved", func() {
			p.Resolve(decimal.RequireFromString("4220.75"), model.Up)

			convey.Convey("Then price and outcome are set together", func() {
				convey.So(p.Resolved(), convey.ShouldBeTrue)
				convey.So(p.Outcome, convey.ShouldEqual, model.OutcomeUp)
				convey.So(p.PriceAfter.String(), convey.ShouldEqual, "4220.75")
			})
		})
	})
}

func TestPostJSON(t *testing.T) {
	convey.Convey("Given a pending post", t, func() {
		p := model.Post{ID: "p-1", PriceBefore: decimal.RequireFromString("4200.50")}

		convey.Convey("Then price_after is null", func() {
			b, err := json.Marshal(p)
			convey.So(err, convey.ShouldBeNil)
			var raw map[string]any
			convey.So(json.Unmarshal(b, &raw), convey.ShouldBeNil)
			convey.So(raw, convey.ShouldContainKey, "price_after")
			convey.So(raw["price_after"], convey.ShouldBeNil)
			convey.So(raw["price_before"], convey.ShouldEqual, "4200.5")
			convey.So(raw["outcome"], convey.ShouldEqual, "unresolved")

			var back model.Post
			convey.So(json.Unmarshal(b, &back), convey.ShouldBeNil)
			convey.So(back.PriceAfter.IsZero(), convey.ShouldBeTrue)
			convey.So(back.Resolved(), convey.ShouldBeFalse)
		})

		convey.Convey("When it is resolved, price_after is encoded", func() {
			p.Resolve(decimal.RequireFromString("4220.75"), model.Up)
			b, err := json.Marshal(p)
			convey.So(err, convey.ShouldBeNil)

			var back model.Post
			convey.So(json.Unmarshal(b, &back), convey.ShouldBeNil)
			convey.So(back.PriceAfter.String(), convey.ShouldEqual, "4220.75")
			convey.So(back.Outcome, convey.ShouldEqual, model.OutcomeUp)
		})
	})
}

func TestDirectionText(t *testing.T) {
	convey.Convey("Given direction labels", t, func() {
		convey.Convey("Aliases parse to the same direction", func() {
			for _, in := range []string{"up", "UP", "bull", " Bull "} {
				d, err := model.ParseDirection(in)
				convey.So(err, convey.ShouldBeNil)
				convey.So(d, convey.ShouldEqual, model.Up)
			}
			for _, in := range []string{"down", "bear"} {
				d, err := model.ParseDirection(in)
				convey.So(err, convey.ShouldBeNil)
				convey.So(d, convey.ShouldEqual, model.Down)
			}
		})

		convey.Convey("Unknown labels are rejected", func() {
			_, err := model.ParseDirection("sideways")
			convey.So(errors.Is(err, model.ErrUnknownValue), convey.ShouldBeTrue)
		})

		convey.Convey("The zero direction is not valid and does not marshal", func() {
			var d model.Direction
			convey.So(d.Valid(), convey.ShouldBeFalse)
			_, err := json.Marshal(d)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestGuessJSON(t *testing.T) {
	convey.Convey("Given a guess submitted with the bear alias", t, func() {
		var g model.Guess
		err := json.Unmarshal([]byte(`{"id":"g-1","guesser_id":"u-1","post_id":"p-1","direction":"bear","correctness":"pending"}`), &g)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then it decodes to Down and pending", func() {
			convey.So(g.Direction, convey.ShouldEqual, model.Down)
			convey.So(g.Correctness, convey.ShouldEqual, model.Pending)
		})

		convey.Convey("Then it encodes with the canonical label", func() {
			g.Correctness = model.Incorrect
			out, err := json.Marshal(g)
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(out), convey.ShouldContainSubstring, `"direction":"down"`)
			convey.So(string(out), convey.ShouldContainSubstring, `"correctness":"incorrect"`)
		})
	})
}

func TestOutcome(t *testing.T) {
	convey.Convey("Given outcomes", t, func() {
		convey.Convey("Directions map onto outcomes and back", func() {
			d, ok := model.OutcomeOf(model.Down).Direction()
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(d, convey.ShouldEqual, model.Down)

			_, ok = model.Unresolved.Direction()
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("An empty label parses as unresolved", func() {
			o, err := model.ParseOutcome("")
			convey.So(err, convey.ShouldBeNil)
			convey.So(o, convey.ShouldEqual, model.Unresolved)
		})
	})
}
