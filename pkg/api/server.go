package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/odjezdy/odjezdy/pkg/api/routes"
	"github.com/odjezdy/odjezdy/pkg/dataaggregator"
)

func SetupApp(aggregator *dataaggregator.Aggregator) *fiber.App {
	webApp := fiber.New()
	webApp.Use(NewLogger())

	group := webApp.Group("/core")

	group.Get("version", routes.APIVersion)

	routes.DeparturesRouter(group.Group("/departures"), aggregator)

	return webApp
}

func SetupServer(listen string, aggregator *dataaggregator.Aggregator) error {
	return SetupApp(aggregator).Listen(listen)
}
