package handlers

import "net/http"

func dateParam(name, description string) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      map[string]string{"type": "string", "format": "date"},
	}
}

func jsonContent(schema interface{}) map[string]interface{} {
	return map[string]interface{}{
		"application/json": map[string]interface{}{"schema": schema},
	}
}

var errorResponse = map[string]interface{}{
	"description": "Invalid query parameter",
	"content":     jsonContent(map[string]string{"$ref": "#/components/schemas/ErrorResponse"}),
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the Terra Platform API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	windowParams := []map[string]interface{}{
		dateParam("start_date", "Inclusive window start (YYYY-MM-DD, default 2010-01-01)"),
		dateParam("end_date", "Inclusive window end (YYYY-MM-DD, default 2024-12-31)"),
	}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Terra Platform API",
			"description": "MOPITT carbon monoxide and MODIS aerosol optical depth time series from the NASA Terra satellite",
			"version":     "1.0.0",
			"contact": map[string]string{
				"name": "Terra Platform Team",
			},
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/mopitt/series": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get monthly series",
					"description": "Monthly CO/AOD averages and summary statistics for an inclusive date window. A start after the end yields an empty series.",
					"parameters":  windowParams,
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Successful response",
							"content":     jsonContent(map[string]string{"$ref": "#/components/schemas/Series"}),
						},
						"400": errorResponse,
						"429": map[string]interface{}{"description": "Rate limit exceeded"},
					},
				},
			},
			"/api/mopitt/observations": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get raw observations",
					"description": "Observations inside the date window, in source order, paginated",
					"parameters": append(append([]map[string]interface{}{}, windowParams...),
						map[string]interface{}{
							"name":        "page",
							"in":          "query",
							"description": "Page number (default: 1)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 1, "minimum": 1},
						},
						map[string]interface{}{
							"name":        "limit",
							"in":          "query",
							"description": "Records per page (default: 100)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 100, "minimum": 1, "maximum": 1000},
						},
					),
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Successful response",
							"content": jsonContent(map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"data": map[string]interface{}{
										"type":  "array",
										"items": map[string]string{"$ref": "#/components/schemas/Observation"},
									},
									"total":       map[string]string{"type": "integer"},
									"page":        map[string]string{"type": "integer"},
									"limit":       map[string]string{"type": "integer"},
									"total_pages": map[string]string{"type": "integer"},
								},
							}),
						},
						"400": errorResponse,
						"429": map[string]interface{}{"description": "Rate limit exceeded"},
					},
				},
			},
			"/api/mopitt/export.xlsx": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Export monthly series",
					"description": "Excel workbook with Monthly and Summary sheets for the date window",
					"parameters":  windowParams,
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "XLSX workbook",
							"content": map[string]interface{}{
								"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": map[string]interface{}{
									"schema": map[string]string{"type": "string", "format": "binary"},
								},
							},
						},
						"400": errorResponse,
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Check that the API and its observation source are available",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "API is healthy"},
						"503": map[string]interface{}{"description": "Observation source unavailable"},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"Observation": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"date":   map[string]string{"type": "string", "format": "date"},
						"year":   map[string]string{"type": "integer"},
						"month":  map[string]string{"type": "integer"},
						"co_ppm": map[string]interface{}{"type": "number", "nullable": true},
						"aod":    map[string]interface{}{"type": "number", "nullable": true},
					},
				},
				"MonthlyAverage": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"period":  map[string]interface{}{"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}$"},
						"co_avg":  map[string]interface{}{"type": "number", "nullable": true},
						"aod_avg": map[string]interface{}{"type": "number", "nullable": true},
						"samples": map[string]string{"type": "integer"},
					},
				},
				"Series": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"start_date":  map[string]string{"type": "string", "format": "date"},
						"end_date":    map[string]string{"type": "string", "format": "date"},
						"data_points": map[string]string{"type": "integer"},
						"months":      map[string]string{"type": "integer"},
						"monthly": map[string]interface{}{
							"type":  "array",
							"items": map[string]string{"$ref": "#/components/schemas/MonthlyAverage"},
						},
						"summary": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"avg_co":  map[string]string{"type": "number"},
								"max_co":  map[string]string{"type": "number"},
								"avg_aod": map[string]string{"type": "number"},
								"max_aod": map[string]string{"type": "number"},
							},
						},
					},
				},
				"ErrorResponse": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":   map[string]string{"type": "string"},
						"message": map[string]string{"type": "string"},
						"code":    map[string]string{"type": "integer"},
					},
				},
			},
		},
	}

	if err := writeJSON(w, spec, http.StatusOK); err != nil {
		writeError(w, "failed to encode API document", http.StatusInternalServerError)
	}
}
