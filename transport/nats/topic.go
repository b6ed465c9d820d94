package nats

import (
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/docblade"
)

func AddEndpoints(group micro.Group, endpoints docblade.EndpointSet) {
	group.AddEndpoint("ingest", IngestHandler(endpoints.Ingest))
	group.AddEndpoint("ask", AskHandler(endpoints.Ask))
	group.AddEndpoint("sources", SourcesHandler(endpoints.Sources))
}
