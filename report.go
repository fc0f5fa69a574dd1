package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"

	"library-catalog/library"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func printBooks(w io.Writer, cat *library.Catalog) {
	books := slices.Collect(cat.Books())
	if len(books) == 0 {
		fmt.Fprintln(w, "No books in library.")
		return
	}
	fmt.Fprintf(w, "Library Books (%d):\n", len(books))
	printBookTable(w, books)
}

func printBookTable(w io.Writer, books []library.Book) {
	fmt.Fprintf(w, "%-5s %-30s %-25s %-20s %-10s %s\n", "ID", "Title", "Author", "ISBN", "Status", "Added")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, b := range books {
		status := "Available"
		if !b.Available {
			status = "Borrowed"
		}
		fmt.Fprintf(w, "%-5d %-30s %-25s %-20s %-10s %s\n",
			b.ID,
			truncateString(b.Title, 30),
			truncateString(b.Author, 25),
			b.ISBN,
			status,
			b.AddedAt.Format("2006-01-02"))
	}
}

func printMembers(w io.Writer, cat *library.Catalog) {
	members := slices.Collect(cat.Members())
	if len(members) == 0 {
		fmt.Fprintln(w, "No members registered.")
		return
	}
	fmt.Fprintf(w, "Library Members (%d):\n", len(members))
	fmt.Fprintf(w, "%-5s %-30s %-35s %s\n", "ID", "Name", "Email", "Borrowed")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, m := range members {
		ids := make([]string, len(m.Borrowed))
		for i, id := range m.Borrowed {
			ids[i] = fmt.Sprint(id)
		}
		borrowed := "None"
		if len(ids) > 0 {
			borrowed = strings.Join(ids, ", ")
		}
		fmt.Fprintf(w, "%-5d %-30s %-35s %s\n",
			m.ID,
			truncateString(m.Name, 30),
			truncateString(m.Email, 35),
			borrowed)
	}
}

func printStatistics(w io.Writer, s library.Statistics) {
	fmt.Fprintln(w, "Library Statistics:")
	fmt.Fprintf(w, "Total Books: %d\n", s.TotalBooks)
	fmt.Fprintf(w, "Total Members: %d\n", s.TotalMembers)
	fmt.Fprintf(w, "Available Books: %d\n", s.AvailableBooks)
	fmt.Fprintf(w, "Borrowed Books: %d\n", s.BorrowedBooks)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	cut := maxLength - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
