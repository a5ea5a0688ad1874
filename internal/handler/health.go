package handler // declare the package name; contains HTTP handlers

import (
	"net/http" // net/http provides status codes and response helpers

	"github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// ConnectionCounter reports how many websocket connections are live.  The
// realtime registry satisfies it.
type ConnectionCounter interface {
	Len() int
}

// Health is a health-check endpoint used by load balancers and monitoring
// systems to verify that the service is running.  Besides "ok" it reports
// the number of live connections on this process.
func Health(conns ConnectionCounter) echo.HandlerFunc {
	return func(c echo.Context) error { // handler signature accepts an echo context and returns an error
		// write the status as JSON with a 200 OK
		return c.JSON(http.StatusOK, echo.Map{
			"status":      "ok",
			"connections": conns.Len(),
		})
	}
}
