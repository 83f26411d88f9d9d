package routes

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/odjezdy/odjezdy/pkg/dataaggregator"
	"github.com/odjezdy/odjezdy/pkg/dataaggregator/query"
)

func DeparturesRouter(router fiber.Router, aggregator *dataaggregator.Aggregator) {
	router.Get("/", getDepartures(aggregator))
}

func getDepartures(aggregator *dataaggregator.Aggregator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var stops []int
		for _, stopValue := range splitList(c.Query("stops")) {
			stopID, err := strconv.Atoi(stopValue)
			if err != nil {
				c.SendStatus(fiber.StatusBadRequest)
				return c.JSON(fiber.Map{
					"error": "Parameter stops should be a comma separated list of stop ids",
				})
			}

			stops = append(stops, stopID)
		}

		limit := 0
		if limitQuery := c.Query("limit"); limitQuery != "" {
			var err error
			limit, err = strconv.Atoi(limitQuery)
			if err != nil {
				c.SendStatus(fiber.StatusBadRequest)
				return c.JSON(fiber.Map{
					"error": "Parameter limit should be an integer",
				})
			}
		}

		minMinutes := 0
		if minMinutesQuery := c.Query("minMinutes"); minMinutesQuery != "" {
			var err error
			minMinutes, err = strconv.Atoi(minMinutesQuery)
			if err != nil {
				c.SendStatus(fiber.StatusBadRequest)
				return c.JSON(fiber.Map{
					"error": "Parameter minMinutes should be an integer",
				})
			}
		}

		board, err := aggregator.Aggregate(query.DepartureBoard{
			Stops:            stops,
			ExcludeTripIDs:   splitList(c.Query("excludeTrips")),
			ExcludeHeadsigns: splitList(c.Query("excludeHeadsigns")),
			Limit:            limit,
			MinMinutes:       minMinutes,
		})

		if err != nil {
			var validationError *query.ValidationError
			if errors.As(err, &validationError) {
				c.SendStatus(fiber.StatusBadRequest)
				return c.JSON(fiber.Map{
					"error": validationError.Message,
				})
			}

			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Failed to generate departure board",
			})
		}

		boardReduced, err := sheriff.Marshal(&sheriff.Options{
			Groups: []string{"basic"},
		}, board)

		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Sheriff could not reduce departure board",
			})
		}

		return c.JSON(boardReduced)
	}
}

func splitList(value string) []string {
	var items []string

	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}

	return items
}
