// Package main provides a tool to seed the catalog with sample authors and books.
//
// It writes through the catalog service, so the search index is populated too.
// Seeding is idempotent: entries that already exist are skipped.
//
// Usage:
//
//	DATA_PATH=~/.library-server go run ./cmd/seed
//	DATA_PATH=~/.library-server go run ./cmd/seed --create-users  # Also create test members
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/listenupapp/library-server/internal/auth"
	"github.com/listenupapp/library-server/internal/clock"
	"github.com/listenupapp/library-server/internal/config"
	domainerrors "github.com/listenupapp/library-server/internal/errors"
	"github.com/listenupapp/library-server/internal/lock"
	"github.com/listenupapp/library-server/internal/logger"
	"github.com/listenupapp/library-server/internal/search"
	"github.com/listenupapp/library-server/internal/service"
	"github.com/listenupapp/library-server/internal/store/sqlite"
	"github.com/listenupapp/library-server/internal/validation"
)

var (
	createUsers = flag.Bool("create-users", false, "Create test member accounts")
	userCount   = flag.Int("users", 5, "Number of test members to create")
)

type seedBook struct {
	title, description, genre string
	year                      int
}

type seedAuthor struct {
	first, last string
	age         int
	books       []seedBook
}

var catalog = []seedAuthor{
	{"Ursula", "Le Guin", 88, []seedBook{
		{"A Wizard of Earthsea", "A young mage learns the cost of power", "Fantasy", 1968},
		{"The Dispossessed", "An ambiguous utopia", "Science Fiction", 1974},
		{"The Lathe of Heaven", "Dreams that rewrite the world", "Science Fiction", 1971},
	}},
	{"Octavia", "Butler", 58, []seedBook{
		{"Kindred", "A writer is pulled back to antebellum Maryland", "Science Fiction", 1979},
		{"Parable of the Sower", "Survival in a collapsing California", "Dystopian", 1993},
	}},
	{"Gabriel", "Garcia Marquez", 87, []seedBook{
		{"Love in the Time", "Half a century of waiting", "Romance", 1985},
	}},
	{"Toni", "Morrison", 88, []seedBook{
		{"Beloved", "A house haunted by its past", "Historical", 1987},
		{"Song of Solomon", "A search for family roots", "Literary", 1977},
	}},
	{"Stanislaw", "Lem", 84, []seedBook{
		{"Solaris", "An ocean that thinks", "Science Fiction", 1961},
	}},
}

func main() {
	flag.Parse()

	// Flags are consumed above; storage settings come from the environment or .env.
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fmt.Printf("Opening data directory: %s\n", cfg.Storage.DataPath)

	discard := logger.Discard()

	db, err := sqlite.Open(cfg.Storage.SQLitePath(), discard)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer db.Close()

	idx, _, err := search.Open(cfg.Storage.SearchPath(), discard)
	if err != nil {
		log.Fatalf("Failed to open search index: %v", err)
	}
	defer idx.Close()

	clk := clock.NewSystem()
	v := validation.New()
	catalogSvc := service.NewCatalogService(db, db, lock.NewKeyedMutex(), idx, v, clk, discard)

	ctx := context.Background()

	authors, books := seedCatalog(ctx, catalogSvc)
	fmt.Printf("\nCreated %d authors and %d books\n", authors, books)

	if *createUsers {
		key, err := auth.LoadOrGenerateKey(cfg.Storage.DataPath)
		if err != nil {
			log.Fatalf("Failed to load auth key: %v", err)
		}
		tokens, err := auth.NewTokenService(key, cfg.Auth.AccessTokenDuration, clk)
		if err != nil {
			log.Fatalf("Failed to create token service: %v", err)
		}
		authSvc := service.NewAuthService(db, tokens, v, clk, discard)
		createTestUsers(ctx, authSvc, *userCount)
	}

	fmt.Println("\nDone!")
}

func seedCatalog(ctx context.Context, svc *service.CatalogService) (authors, books int) {
	for _, a := range catalog {
		author, err := svc.CreateAuthor(ctx, service.CreateAuthorRequest{
			FirstName: a.first,
			LastName:  a.last,
			Age:       a.age,
		})
		switch {
		case errors.Is(err, domainerrors.ErrAlreadyExists):
			fmt.Printf("  Author %s %s already exists, skipping\n", a.first, a.last)
			continue
		case err != nil:
			log.Printf("Failed to create author %s %s: %v", a.first, a.last, err)
			continue
		}
		authors++
		fmt.Printf("  Created author: %s %s\n", author.FirstName, author.LastName)

		for _, b := range a.books {
			book, err := svc.CreateBook(ctx, service.CreateBookRequest{
				Title:       b.title,
				Description: b.description,
				Genre:       b.genre,
				Year:        b.year,
				AuthorID:    author.ID,
			})
			if err != nil {
				log.Printf("Failed to create book %q: %v", b.title, err)
				continue
			}
			books++
			fmt.Printf("    Created book: %s (%d)\n", book.Title, book.Year)
		}
	}
	return authors, books
}

func createTestUsers(ctx context.Context, svc *service.AuthService, n int) {
	fmt.Println("\nCreating test members...")

	for i := 1; i <= n; i++ {
		email := fmt.Sprintf("reader%d@example.com", i)
		resp, err := svc.Register(ctx, service.RegisterRequest{
			Email:    email,
			Password: "password123",
		})
		switch {
		case errors.Is(err, domainerrors.ErrAlreadyExists):
			fmt.Printf("  User %s already exists, skipping\n", email)
		case err != nil:
			log.Printf("Failed to create user %s: %v", email, err)
		default:
			fmt.Printf("  Created %s: %s (password: password123)\n", resp.User.Role, email)
		}
	}
}
