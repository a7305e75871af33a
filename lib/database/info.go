package database

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Database Info
// --------------------------------------------------------------------------

// Info summarizes the state of a database.
type Info struct {
	Path          string
	SchemaVersion int
	Columns       []string
	Batches       int
	Rows          int64
	SizeBytes     int64
	LastSequence  uint64
	RestorePoints []string
}

// Info collects a summary from the current catalog snapshot.
func (db *Database) Info() (Info, error) {
	snap, err := db.cat.Read()
	if err != nil {
		return Info{}, err
	}

	info := Info{
		Path:          db.path,
		SchemaVersion: db.schema.Version,
		Columns:       db.schema.ColumnNames(),
		Batches:       len(snap.Records),
		LastSequence:  snap.LastSequence(),
	}
	for _, rec := range snap.Records {
		info.Rows += rec.Rows
		for _, entry := range rec.Manifest {
			info.SizeBytes += entry.SizeBytes
		}
		info.RestorePoints = append(info.RestorePoints, rec.Name)
	}
	return info, nil
}

// String returns a formatted, human-readable summary.
func (i Info) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-16s: %s\n", name, value))
	}

	addSection("Database")
	addField("Path", i.Path)
	addField("Schema Version", fmt.Sprintf("%d", i.SchemaVersion))
	addField("Columns", strings.Join(i.Columns, ", "))

	addSection("Data")
	addField("Batches", fmt.Sprintf("%d", i.Batches))
	addField("Rows", fmt.Sprintf("%d", i.Rows))
	addField("Size", humanSize(i.SizeBytes))
	addField("Last Sequence", fmt.Sprintf("%d", i.LastSequence))

	addSection("Restore Points")
	for n, name := range i.RestorePoints {
		addField(fmt.Sprintf("%d", n+1), name)
	}
	return sb.String()
}

// humanSize renders a byte count with a binary unit suffix.
func humanSize(n int64) string {
	suffixes := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	size := float64(n)
	i := 0
	for size >= 1024 && i < len(suffixes)-1 {
		size /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d %s", n, suffixes[0])
	}
	return fmt.Sprintf("%.2f %s", size, suffixes[i])
}
