package waitlist

import (
	"strings"
	"time"

	"github.com/akeren/waitlist-api/config/router"
	"github.com/akeren/waitlist-api/internal/log"
	"github.com/akeren/waitlist-api/pkg/constants"
	apperrors "github.com/akeren/waitlist-api/pkg/errors"
)

func NewWaitlistController(service WaitlistService, logger *log.Logger) *router.RESTController {
	return router.NewRESTController(
		"WaitlistController",
		"/api/waitlist",
		func(rs *router.RouterService, c *router.RESTController) {
			if err := RegisterValidators(); err != nil {
				logger.Error("Failed to register waitlist validators", "error", err)
			}

			signupLimiter := rs.NewRateLimiter(constants.WaitlistSignupRequestsPerMinute, time.Minute)

			rs.AddPostHandler(c, signupLimiter, "", joinWaitlistHandler(service))
			rs.AddGetHandler(c, nil, "", waitlistStatusHandler(service))

			// Paths used by the marketing site's client library.
			rs.AddGetHandler(c, nil, "position", waitlistPositionHandler(service))
			rs.AddGetHandler(c, nil, "stats", waitlistStatsHandler(service))
		},
	)
}

func joinWaitlistHandler(service WaitlistService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		logger := router.GetLogger(ctx)

		var req JoinWaitlistRequest

		if err := ctx.ShouldBindJSON(&req); err != nil {
			logger.Warn("Rejected waitlist signup", "error", err)

			validationErrors := apperrors.FormatValidationErrors(err, &req)
			if len(validationErrors) > 0 {
				return router.BadRequestResult(signupErrorMessage(validationErrors), validationErrors)
			}

			return router.BadRequestResult("Invalid request body", nil)
		}

		response, err := service.Join(ctx.Request.Context(), &req)
		if err != nil {
			return router.ResultFromError(err)
		}

		return router.OKResult(response, "Joined waitlist successfully")
	}
}

// signupErrorMessage surfaces the email problem first since that is the only
// field a visitor can get wrong in the form.
func signupErrorMessage(errs []apperrors.ValidationErrorResponse) string {
	for _, e := range errs {
		if e.Field != "email" {
			continue
		}
		if strings.Contains(e.Message, "required") {
			return "Email is required"
		}
		return e.Message
	}
	return "Invalid request payload"
}

func waitlistStatusHandler(service WaitlistService) router.HandlerFunction {
	position := waitlistPositionHandler(service)
	stats := waitlistStatsHandler(service)

	return func(ctx *router.RequestContext) *router.ServiceResult {
		if ctx.Query("email") != "" {
			return position(ctx)
		}
		return stats(ctx)
	}
}

func waitlistPositionHandler(service WaitlistService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		response, err := service.Position(ctx.Request.Context(), ctx.Query("email"))
		if err != nil {
			return router.ResultFromError(err)
		}

		return router.OKResult(response, "Waitlist position retrieved successfully")
	}
}

func waitlistStatsHandler(service WaitlistService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		response, err := service.Stats(ctx.Request.Context())
		if err != nil {
			return router.ResultFromError(err)
		}

		return router.OKResult(response, "Waitlist stats retrieved successfully")
	}
}
