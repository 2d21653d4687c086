package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"photoreviver/internal/model"
	"photoreviver/internal/repository/sqlite"
	"photoreviver/internal/service/storage"

	dimaging "github.com/disintegration/imaging"
	"github.com/google/uuid"
)

func main() {
	archiveDir := flag.String("archive", "restored", "Directory containing archived restorations")
	dbPath := flag.String("db", "data/restorations.db", "Database path")
	thumbSize := flag.Int("thumb", 256, "Thumbnail size for files that are missing one")
	flag.Parse()

	fmt.Printf("Indexing restorations from %s into database %s\n", *archiveDir, *dbPath)

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	repo := sqlite.NewRestorationRepository(db)

	files, err := os.ReadDir(*archiveDir)
	if err != nil {
		log.Fatalf("Failed to read archive directory: %v", err)
	}

	inserted, existing, skipped := 0, 0, 0
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasSuffix(name, ".jpg") || strings.HasSuffix(name, storage.ThumbnailSuffix) {
			continue
		}

		timestamp, engine, step, err := storage.ParseFilename(name)
		if err != nil {
			log.Printf("Skipping %s: %v", name, err)
			skipped++
			continue
		}

		found, err := repo.ExistsByFilename(name)
		if err != nil {
			log.Fatalf("Failed to query database: %v", err)
		}
		if found {
			existing++
			continue
		}

		path := filepath.Join(*archiveDir, name)
		img, err := dimaging.Open(path)
		if err != nil {
			log.Printf("Skipping %s: %v", name, err)
			skipped++
			continue
		}
		info, err := file.Info()
		if err != nil {
			log.Printf("Skipping %s: %v", name, err)
			skipped++
			continue
		}

		thumb := storage.ThumbnailPath(path)
		if _, err := os.Stat(thumb); os.IsNotExist(err) {
			data, err := os.ReadFile(path)
			if err == nil {
				err = storage.WriteThumbnail(data, thumb, *thumbSize)
			}
			if err != nil {
				log.Printf("No thumbnail for %s: %v", name, err)
				thumb = ""
			}
		}

		_, err = repo.Insert(&model.Restoration{
			UID:           uuid.NewString(),
			Filename:      name,
			Engine:        engine,
			Step:          step,
			OutputSize:    info.Size(),
			Width:         img.Bounds().Dx(),
			Height:        img.Bounds().Dy(),
			FilePath:      path,
			ThumbnailPath: thumb,
			Timestamp:     timestamp,
		})
		if err != nil {
			log.Printf("Failed to insert %s: %v", name, err)
			skipped++
			continue
		}
		inserted++
	}

	fmt.Printf("Indexed %d new restorations (%d already present)\n", inserted, existing)
	if skipped > 0 {
		fmt.Printf("Skipped %d files (invalid format or errors)\n", skipped)
	}

	stats, err := repo.Stats()
	if err == nil {
		fmt.Printf("\nDatabase statistics:\n")
		fmt.Printf("   Total restorations: %d\n", stats.Total)
		fmt.Printf("   Total size: %d bytes\n", stats.TotalOutputSize)
		for engine, count := range stats.PerEngine {
			fmt.Printf("   - %s: %d\n", engine, count)
		}
	}
}
