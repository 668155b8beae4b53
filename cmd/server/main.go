package main

import (
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	adminhandler "gradevault/backend/internal/admin/handler"
	adminservice "gradevault/backend/internal/admin/service"
	artifacthandler "gradevault/backend/internal/artifact/handler"
	artifactrepo "gradevault/backend/internal/artifact/repository"
	artifactservice "gradevault/backend/internal/artifact/service"
	"gradevault/backend/internal/audit"
	audithandler "gradevault/backend/internal/audit/handler"
	auditrepo "gradevault/backend/internal/audit/repository"
	"gradevault/backend/internal/config"
	courserepo "gradevault/backend/internal/course/repository"
	"gradevault/backend/internal/db"
	"gradevault/backend/internal/devotp"
	devotphandler "gradevault/backend/internal/devotp/handler"
	endorsementrepo "gradevault/backend/internal/endorsement/repository"
	identityhandler "gradevault/backend/internal/identity/handler"
	identityrepo "gradevault/backend/internal/identity/repository"
	identityservice "gradevault/backend/internal/identity/service"
	"gradevault/backend/internal/mfa/mail"
	mfarepo "gradevault/backend/internal/mfa/repository"
	"gradevault/backend/internal/ratelimit"
	"gradevault/backend/internal/security"
	"gradevault/backend/internal/server"
	"gradevault/backend/internal/server/interceptors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if cfg.JWTPrivateKey == "" || cfg.JWTPublicKey == "" {
		log.Fatal("JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("JWT_PRIVATE_KEY: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("JWT_PUBLIC_KEY: %v", err)
	}
	tokens := security.NewTokenProvider(privateKey, publicKey,
		cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())

	users := identityrepo.NewPostgresRepository(conn)
	otps := mfarepo.NewPostgresRepository(conn)
	courses := courserepo.NewPostgresRepository(conn)
	artifacts := artifactrepo.NewPostgresRepository(conn)
	endorsements := endorsementrepo.NewPostgresRepository(conn)
	audits := auditrepo.NewPostgresRepository(conn)
	auditor := audit.NewLogger(audits, interceptors.ClientIP)

	var mailer mail.Sender = mail.ConsoleSender{}
	if cfg.MailRelayAPIKey != "" && cfg.MailRelayURL != "" {
		mailer = mail.NewRelayClient(cfg.MailRelayAPIKey, cfg.MailRelayURL, cfg.MailFrom)
	}

	var devStore *devotp.MemoryStore
	var devStoreForAuth identityservice.DevOTPStore
	if cfg.OTPReturnToClient {
		log.Println("dev OTP mode enabled: issued codes are returned to clients")
		devStore = devotp.NewMemoryStore()
		devStoreForAuth = devStore
	}

	authSvc := identityservice.NewAuthService(
		users, otps, ratelimit.New(), mailer,
		security.NewHasher(), tokens, auditor,
		cfg.TOTPIssuer, cfg.OTPTTL(), devStoreForAuth,
	)
	artifactSvc := artifactservice.NewArtifactService(artifacts, courses, endorsements, users, auditor)
	adminSvc := adminservice.NewAdminService(users, courses, security.NewHasher(), auditor)

	services := []server.Registrar{
		identityhandler.NewAuthServer(authSvc),
		artifacthandler.NewArtifactServer(artifactSvc),
		adminhandler.NewAdminServer(adminSvc),
		audithandler.NewAuditServer(audits),
	}
	if devStore != nil {
		services = append(services, devotphandler.NewDevOTPServer(devStore))
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	s, healthSrv := server.New(tokens, audits, services...)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := s.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down gRPC server...")
	s.GracefulStop()
	log.Println("gRPC server stopped")
}
