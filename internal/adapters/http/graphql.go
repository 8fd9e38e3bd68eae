package http

import (
	"errors"
	"math"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/busradar/internal/core/domain"
	"github.com/samirrijal/busradar/internal/core/usecases"
	"github.com/samirrijal/busradar/internal/pkg/geospatial"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	stopType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Stop",
		Fields: graphql.Fields{
			"code":        &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"road_name":   &graphql.Field{Type: graphql.String},
			"location":    &graphql.Field{Type: geoPointType},
			"distance":    &graphql.Field{Type: graphql.Float},
		},
	})

	nearbyType := graphql.NewObject(graphql.ObjectConfig{
		Name: "NearbyStops",
		Fields: graphql.Fields{
			"zoom":     &graphql.Field{Type: graphql.Float},
			"radius_m": &graphql.Field{Type: graphql.Float},
			"icon_size": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if res, ok := p.Source.(usecases.NearbyResult); ok {
						return string(res.IconSize), nil
					}
					return nil, nil
				},
			},
			"stops": &graphql.Field{Type: graphql.NewList(stopType)},
		},
	})

	areaType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Area",
		Fields: graphql.Fields{
			"name":     &graphql.Field{Type: graphql.String},
			"forecast": &graphql.Field{Type: graphql.String},
			"has_forecast": &graphql.Field{
				Type: graphql.Boolean,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					switch r := p.Source.(type) {
					case domain.Region:
						return r.HasForecast(), nil
					case *domain.Region:
						return r.HasForecast(), nil
					}
					return false, nil
				},
			},
		},
	})

	markerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "WeatherMarker",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: graphql.String},
			"position": &graphql.Field{Type: geoPointType},
			"size": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					m, _ := p.Source.(domain.Marker)
					return string(m.Fingerprint.Size), nil
				},
			},
			"label": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					m, _ := p.Source.(domain.Marker)
					return m.Fingerprint.Label, nil
				},
			},
		},
	})

	pointArgs := graphql.FieldConfigArgument{
		"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"stopsNearby": &graphql.Field{
				Type:        nearbyType,
				Description: "Stops shown around a map center at a zoom level",
				Args: graphql.FieldConfigArgument{
					"lat":  pointArgs["lat"],
					"lon":  pointArgs["lon"],
					"zoom": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: usecases.CloseStopZoom},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					center, err := argPoint(p.Args)
					if err != nil {
						return nil, err
					}
					return deps.Stops.Nearby(center, argFloat(p.Args, "zoom")), nil
				},
			},
			"stop": &graphql.Field{
				Type:        stopType,
				Description: "Get a stop by its code",
				Args: graphql.FieldConfigArgument{
					"code": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					code := p.Args["code"].(string)
					return deps.Stops.GetByCode(p.Context, code)
				},
			},
			"area": &graphql.Field{
				Type:        areaType,
				Description: "Planning area containing a point, null when outside every area",
				Args:        pointArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					pt, err := argPoint(p.Args)
					if err != nil {
						return nil, err
					}
					region := usecases.ResolveArea(pt, deps.Weather.Store().Snapshot().Regions)
					if region == nil {
						return nil, nil
					}
					return region, nil
				},
			},
			"areas": &graphql.Field{
				Type:        graphql.NewList(areaType),
				Description: "All planning areas with their current forecast",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Weather.Store().Snapshot().Regions, nil
				},
			},
			"weatherMarkers": &graphql.Field{
				Type:        graphql.NewList(markerType),
				Description: "Weather markers shown at a zoom level",
				Args: graphql.FieldConfigArgument{
					"zoom": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: usecases.DefaultWeatherZoomThreshold},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Weather.Markers(argFloat(p.Args, "zoom")), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func argFloat(args map[string]interface{}, name string) float64 {
	switch v := args[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return math.NaN()
}

func argPoint(args map[string]interface{}) (domain.GeoPoint, error) {
	p := domain.GeoPoint{Lat: argFloat(args, "lat"), Lon: argFloat(args, "lon")}
	if !geospatial.ValidPoint(p) {
		return domain.GeoPoint{}, errors.New("lat/lon out of range")
	}
	return p, nil
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
		if req.Query == "" {
			return errBadRequest(c, "query is required")
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
