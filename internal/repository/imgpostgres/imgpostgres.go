package imgpostgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
	"github.com/wb-go/wbf/dbpg"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

func (p PostgresRepo) Append(ctx context.Context, c model.Collection, n *model.ImageRecord) error {
	if !model.CollectionsMap[c] {
		return fmt.Errorf("%w: %q", model.ErrUnknownCollection, c)
	}
	if n == nil {
		return errors.New("nil record passed to imgpostgres.Append")
	}

	query := `INSERT INTO image_records (collection, image_id, name, url, size, format, width, height, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	return p.DB.QueryRowContext(ctx, query, c, n.ID, n.Name, n.URL, n.Size, n.Format, n.Width, n.Height, n.CreatedAt).Err()
}

func (p PostgresRepo) FindByID(ctx context.Context, c model.Collection, id string) (*model.ImageRecord, error) {
	if !model.CollectionsMap[c] {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownCollection, c)
	}

	// при дубликатах отдаем самую раннюю запись
	query := `SELECT image_id, name, url, size, format, width, height, created_at
	FROM image_records
	WHERE collection = $1 AND image_id = $2
	ORDER BY seq ASC
	LIMIT 1`
	var image model.ImageRecord

	err := p.DB.QueryRowContext(ctx, query, c, id).Scan(&image.ID,
		&image.Name,
		&image.URL,
		&image.Size,
		&image.Format,
		&image.Width,
		&image.Height,
		&image.CreatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrImageNotFound
		default:
			return nil, err // 500
		}
	}
	image.CreatedAt = image.CreatedAt.UTC()
	return &image, nil
}

func (p PostgresRepo) ListAll(ctx context.Context, c model.Collection) ([]model.ImageRecord, error) {
	if !model.CollectionsMap[c] {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownCollection, c)
	}

	query := `SELECT image_id, name, url, size, format, width, height, created_at
	FROM image_records
	WHERE collection = $1
	ORDER BY seq ASC`

	rows, err := p.DB.QueryContext(ctx, query, c)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	images := make([]model.ImageRecord, 0)
	for rows.Next() {
		var image model.ImageRecord
		if err := rows.Scan(&image.ID,
			&image.Name,
			&image.URL,
			&image.Size,
			&image.Format,
			&image.Width,
			&image.Height,
			&image.CreatedAt); err != nil {
			return nil, err
		}
		image.CreatedAt = image.CreatedAt.UTC()
		images = append(images, image)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return images, nil
}
