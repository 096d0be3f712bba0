package routes

import (
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/quantumdemo/sna/backend/chat"
	"github.com/quantumdemo/sna/backend/config"
	"github.com/quantumdemo/sna/backend/controllers"
	"github.com/quantumdemo/sna/backend/middleware"
	"github.com/quantumdemo/sna/backend/models"
	"github.com/quantumdemo/sna/backend/services"
	"github.com/quantumdemo/sna/backend/utils"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config, logger *log.Logger) {
	files := services.NewDiskStore(cfg.UploadDir)
	certGen := services.NewLocalCertificateGenerator(cfg.UploadDir)

	hub := chat.NewHub()
	events := chat.NewHandler(db, cfg, hub, logger)

	// Auth routes
	authController := controllers.NewAuthController(db, cfg)
	app.Post("/api/auth/register", authController.Register)
	app.Post("/api/auth/login", authController.Login)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(cfg)
	adminOnly := middleware.RequireRole(db, cfg, models.RoleAdmin)
	staffOnly := middleware.RequireRole(db, cfg, models.RoleAdmin, models.RoleInstructor)

	// Profile routes
	app.Get("/api/user/profile", authMiddleware, authController.GetProfile)
	app.Put("/api/user/profile", authMiddleware, authController.UpdateProfile)

	// Admin routes
	adminController := controllers.NewAdminController(db, cfg)
	admin := app.Group("/api/admin", adminOnly)
	admin.Get("/instructors/pending", adminController.ListPendingInstructors)
	admin.Post("/instructors/:id/approve", adminController.ApproveInstructor)
	admin.Post("/courses/:id/approve", adminController.ApproveCourse)
	admin.Post("/users/:id/ban", adminController.BanUser)

	// Courses routes
	coursesController := controllers.NewCoursesController(db, cfg)
	courses := app.Group("/api/courses", authMiddleware)
	courses.Get("/", coursesController.ListCourses)
	courses.Post("/", coursesController.CreateCourse)
	courses.Get("/:id", coursesController.GetCourse)
	courses.Post("/:id/modules", coursesController.AddModule)
	courses.Post("/:id/enroll", coursesController.Enroll)
	courses.Get("/:id/enrollments", coursesController.ListEnrollments)
	courses.Put("/:id/enrollments/:enrollmentId", coursesController.ReviewEnrollment)

	// Quiz routes
	quizzesController := controllers.NewQuizzesController(db, cfg)
	quizzes := app.Group("/api", authMiddleware)
	quizzes.Post("/modules/:moduleId/quiz", quizzesController.CreateQuiz)
	quizzes.Post("/quizzes/:quizId/questions", quizzesController.AddQuestion)
	quizzes.Get("/quizzes/:quizId", quizzesController.GetQuiz)
	quizzes.Post("/quizzes/:quizId/submit", quizzesController.Submit)

	// Assignment routes
	assignmentsController := controllers.NewAssignmentsController(db, cfg, files)
	assignments := app.Group("/api", authMiddleware)
	assignments.Post("/modules/:moduleId/assignment", assignmentsController.CreateAssignment)
	assignments.Post("/assignments/:assignmentId/submit", assignmentsController.Submit)
	assignments.Get("/assignments/:assignmentId/submissions", assignmentsController.ListSubmissions)
	assignments.Post("/assignment-submissions/:submissionId/grade", assignmentsController.GradeSubmission)

	// Exam routes
	examsController := controllers.NewExamsController(db, cfg)
	exams := app.Group("/api", authMiddleware)
	exams.Post("/courses/:id/exam", examsController.CreateExam)
	exams.Put("/exams/:examId/settings", examsController.UpdateSettings)
	exams.Post("/exams/:examId/publish", examsController.Publish)
	exams.Post("/exams/:examId/questions", examsController.AddQuestion)
	exams.Post("/exams/:examId/start", examsController.Start)
	exams.Get("/exams/:examId/result", examsController.MyResult)
	exams.Post("/exam-submissions/:submissionId/violations", examsController.LogViolation)
	exams.Post("/exam-submissions/:submissionId/submit", examsController.Submit)
	exams.Post("/exam-submissions/:submissionId/appeal", examsController.Appeal)

	// Grading routes
	gradingController := controllers.NewGradingController(db, cfg)
	grading := app.Group("/api", authMiddleware, staffOnly)
	grading.Get("/exams/:examId/submissions", gradingController.ListSubmissions)
	grading.Get("/exam-submissions/:submissionId", gradingController.GetSubmission)
	grading.Post("/exam-submissions/:submissionId/grade", gradingController.Grade)
	grading.Post("/exam-submissions/:submissionId/release", gradingController.Release)
	grading.Post("/exam-submissions/:submissionId/appeal/handle", gradingController.HandleAppeal)

	// Progress routes
	progressController := controllers.NewProgressController(db, cfg)
	app.Get("/api/courses/:id/progress", authMiddleware, progressController.GetCourseProgress)
	app.Get("/api/dashboard", authMiddleware, progressController.Dashboard)
	app.Post("/api/courses/:id/certificate-request", authMiddleware, progressController.RequestCertificate)

	// Certificate routes
	certificatesController := controllers.NewCertificatesController(db, cfg, certGen)
	app.Get("/api/admin/certificate-requests", adminOnly, certificatesController.ListRequests)
	app.Post("/api/admin/certificate-requests/:requestId/approve", adminOnly, certificatesController.ApproveRequest)
	app.Post("/api/admin/certificate-requests/:requestId/reject", adminOnly, certificatesController.RejectRequest)
	app.Get("/api/certificates", authMiddleware, certificatesController.MyCertificates)
	app.Get("/api/certificates/verify/:uid", certificatesController.Verify)

	// Chat routes
	chatController := controllers.NewChatController(db, cfg, events, files)
	chatGroup := app.Group("/api/chat", authMiddleware)
	chatGroup.Get("/rooms", chatController.ListRooms)
	chatGroup.Post("/rooms", chatController.CreateRoom)
	chatGroup.Post("/rooms/join/:token", chatController.JoinByToken)
	chatGroup.Get("/rooms/:roomId/messages", chatController.History)
	chatGroup.Get("/rooms/:roomId/members", chatController.Members)
	chatGroup.Post("/rooms/:roomId/mute/:userId", chatController.Mute)
	chatGroup.Post("/rooms/:roomId/unmute/:userId", chatController.Unmute)
	chatGroup.Post("/rooms/:roomId/lock", chatController.ToggleLock)
	chatGroup.Delete("/rooms/:roomId/members/:userId", chatController.RemoveMember)
	chatGroup.Post("/rooms/:roomId/upload", chatController.UploadFile)
	app.Get("/api/chat/reported", adminOnly, chatController.ReportedMessages)

	// Websocket upgrade. The principal is resolved here because websocket
	// handlers cannot read request headers after the upgrade.
	app.Use("/ws/chat", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if user, err := utils.CurrentUser(c, db, cfg); err == nil {
			c.Locals("chat_user", user)
		}
		return c.Next()
	})
	app.Get("/ws/chat", websocket.New(events.ServeConn))
}
