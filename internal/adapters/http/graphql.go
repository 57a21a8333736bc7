package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/multiride/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to our services. Field names
// follow the JSON tags of the domain types, so graphql-go's default
// resolver reads the structs directly.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	latLngType := graphql.NewObject(graphql.ObjectConfig{
		Name: "LatLng",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	placeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Place",
		Fields: graphql.Fields{
			"location":    &graphql.Field{Type: latLngType},
			"description": &graphql.Field{Type: graphql.String},
		},
	})

	segmentType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Segment",
		Fields: graphql.Fields{
			"index": &graphql.Field{Type: graphql.Int},
			"start": &graphql.Field{Type: latLngType},
			"end":   &graphql.Field{Type: latLngType},
			"mode":  &graphql.Field{Type: graphql.String},
		},
	})

	splitType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SplitResult",
		Fields: graphql.Fields{
			"boundaries": &graphql.Field{Type: graphql.NewList(latLngType)},
			"segments":   &graphql.Field{Type: graphql.NewList(segmentType)},
		},
	})

	fareQuoteType := graphql.NewObject(graphql.ObjectConfig{
		Name: "FareQuote",
		Fields: graphql.Fields{
			"ride_type":   &graphql.Field{Type: graphql.String},
			"option":      &graphql.Field{Type: graphql.String},
			"label":       &graphql.Field{Type: graphql.String},
			"distance_km": &graphql.Field{Type: graphql.Float},
			"fare":        &graphql.Field{Type: graphql.Int},
			"currency":    &graphql.Field{Type: graphql.String},
		},
	})

	legType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Leg",
		Fields: graphql.Fields{
			"index":            &graphql.Field{Type: graphql.Int},
			"start":            &graphql.Field{Type: latLngType},
			"end":              &graphql.Field{Type: latLngType},
			"mode":             &graphql.Field{Type: graphql.String},
			"option":           &graphql.Field{Type: graphql.String},
			"distance_meters":  &graphql.Field{Type: graphql.Float},
			"duration_seconds": &graphql.Field{Type: graphql.Int},
			"fare":             &graphql.Field{Type: graphql.Int},
			"pickup_geohash":   &graphql.Field{Type: graphql.String},
		},
	})

	planType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TripPlan",
		Fields: graphql.Fields{
			"id":               &graphql.Field{Type: graphql.String},
			"user_id":          &graphql.Field{Type: graphql.String},
			"origin":           &graphql.Field{Type: placeType},
			"destination":      &graphql.Field{Type: placeType},
			"polyline":         &graphql.Field{Type: graphql.String},
			"distance_meters":  &graphql.Field{Type: graphql.Float},
			"duration_seconds": &graphql.Field{Type: graphql.Int},
			"total_fare":       &graphql.Field{Type: graphql.Int},
			"fallback":         &graphql.Field{Type: graphql.Boolean},
			"legs":             &graphql.Field{Type: graphql.NewList(legType)},
		},
	})

	bookingLegType := graphql.NewObject(graphql.ObjectConfig{
		Name: "BookingLeg",
		Fields: graphql.Fields{
			"segment_index": &graphql.Field{Type: graphql.Int},
			"mode":          &graphql.Field{Type: graphql.String},
			"option":        &graphql.Field{Type: graphql.String},
			"fare":          &graphql.Field{Type: graphql.Int},
			"status":        &graphql.Field{Type: graphql.String},
			"driver_id":     &graphql.Field{Type: graphql.String},
			"driver_name":   &graphql.Field{Type: graphql.String},
		},
	})

	bookingType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Booking",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"plan_id":    &graphql.Field{Type: graphql.String},
			"user_id":    &graphql.Field{Type: graphql.String},
			"status":     &graphql.Field{Type: graphql.String},
			"total_fare": &graphql.Field{Type: graphql.Int},
			"legs":       &graphql.Field{Type: graphql.NewList(bookingLegType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"splitRoute": &graphql.Field{
				Type:        splitType,
				Description: "Split an encoded polyline into equal-distance segments",
				Args: graphql.FieldConfigArgument{
					"polyline": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"segments": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"modes":    &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					encoded := p.Args["polyline"].(string)
					n := p.Args["segments"].(int)
					var modes []string
					if raw, ok := p.Args["modes"].([]interface{}); ok {
						for _, m := range raw {
							if s, ok := m.(string); ok {
								modes = append(modes, s)
							}
						}
					}
					return deps.Planner.SplitRoute(encoded, n, modes)
				},
			},
			"fareQuotes": &graphql.Field{
				Type:        graphql.NewList(fareQuoteType),
				Description: "Fares for every ride type over a distance",
				Args: graphql.FieldConfigArgument{
					"distance_m": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Fares.QuoteAll(p.Args["distance_m"].(float64)), nil
				},
			},
			"plan": &graphql.Field{
				Type:        planType,
				Description: "Get a trip plan by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					plan, err := deps.Planner.GetPlan(p.Context, p.Args["id"].(string))
					if errors.Is(err, usecases.ErrPlanNotFound) {
						return nil, nil
					}
					return plan, err
				},
			},
			"booking": &graphql.Field{
				Type:        bookingType,
				Description: "Get a booking by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					booking, err := deps.Bookings.GetBooking(p.Context, p.Args["id"].(string))
					if errors.Is(err, usecases.ErrBookingNotFound) {
						return nil, nil
					}
					return booking, err
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
