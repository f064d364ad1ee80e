package routes

import (
	"github.com/gofiber/fiber/v2"

	"anivote-backend/controllers"
	"anivote-backend/middleware"
)

func VoteRoutes(app *fiber.App) {
	api := app.Group("/api")

	api.Post("/vote", middleware.OptionalAuth, controllers.SubmitVote)
	api.Get("/vote", middleware.OptionalAuth, controllers.GetMyVote)
	api.Get("/vote/time-left", controllers.GetVoteTimeLeft)
	api.Get("/ranking", controllers.GetRanking)

	api.Post("/members/register", controllers.Register)
	api.Post("/members/login", controllers.Login)
	api.Get("/members/me", middleware.RequireAuth, controllers.GetMe)

	admin := api.Group("/admin", middleware.RequireAdmin)
	admin.Post("/tally", controllers.RunTally)
	admin.Post("/shadow-bans", controllers.AddShadowBan)
	admin.Delete("/shadow-bans/:ipHash", controllers.RemoveShadowBan)
	admin.Delete("/candidates/:id", controllers.StrikeCandidate)
	admin.Post("/candidates/import", controllers.ImportCandidates)
	admin.Get("/schedule/candidates", controllers.GetScheduleCandidates)
}
