package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"library-catalog/library"
)

// shell is the interactive menu. It reads commands line by line so it works
// the same on a terminal and on piped input.
type shell struct {
	cat      *library.Catalog
	sc       *bufio.Scanner
	out      io.Writer
	prompts  bool
	dataFile string
}

func newShell(cat *library.Catalog, in io.Reader, out io.Writer, prompts bool, dataFile string) *shell {
	return &shell{
		cat:      cat,
		sc:       bufio.NewScanner(in),
		out:      out,
		prompts:  prompts,
		dataFile: dataFile,
	}
}

// menu numbers kept from the original numbered menu.
var menuAliases = map[string]string{
	"1":  "add book",
	"2":  "add member",
	"3":  "borrow",
	"4":  "return",
	"5":  "list books",
	"6":  "list members",
	"7":  "remove book",
	"8":  "remove member",
	"9":  "stats",
	"10": "exit",
}

func (s *shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *shell) prompt(text string) {
	if s.prompts {
		fmt.Fprint(s.out, text)
	}
}

func (s *shell) banner() {
	s.printf("Library Management System\n")
	s.printf("Available commands:\n")
	s.printf("  Books: add book, list books, search book, remove book\n")
	s.printf("  Members: add member, list members, remove member\n")
	s.printf("  Circulation: borrow, return\n")
	s.printf("  System: stats, save, exit (saves and quits)\n")
	s.printf("Menu numbers 1-10 work too.\n")
}

// run processes commands until exit or end of input. Only exit saves.
func (s *shell) run() error {
	if s.prompts {
		s.banner()
	}
	for {
		s.prompt("\n> ")
		if !s.sc.Scan() {
			return s.sc.Err()
		}
		cmd := strings.ToLower(strings.TrimSpace(s.sc.Text()))
		if alias, ok := menuAliases[cmd]; ok {
			cmd = alias
		}

		switch cmd {
		case "":
			continue
		case "add book":
			s.handleAddBook()
		case "add member":
			s.handleAddMember()
		case "borrow":
			s.handleBorrow()
		case "return":
			s.handleReturn()
		case "list books":
			printBooks(s.out, s.cat)
		case "list members":
			printMembers(s.out, s.cat)
		case "search book":
			s.handleSearchBooks()
		case "remove book":
			if id, ok := s.readID("Book ID: "); ok {
				s.cat.RemoveBook(id)
				s.printf("Book %d removed.\n", id)
			}
		case "remove member":
			if id, ok := s.readID("Member ID: "); ok {
				s.cat.RemoveMember(id)
				s.printf("Member %d removed.\n", id)
			}
		case "stats":
			printStatistics(s.out, s.cat.Statistics())
		case "save":
			s.handleSave()
		case "exit", "quit":
			if !s.handleSave() {
				return fmt.Errorf("save %s failed", s.dataFile)
			}
			s.printf("Goodbye!\n")
			return nil
		default:
			s.printf("Unknown command. Type one of the available commands listed above.\n")
		}
	}
}

func (s *shell) readLine(prompt string) (string, bool) {
	s.prompt(prompt)
	if !s.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.sc.Text()), true
}

func (s *shell) readID(prompt string) (int64, bool) {
	text, ok := s.readLine(prompt)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id <= 0 {
		s.printf("Invalid ID: %s\n", text)
		return 0, false
	}
	return id, true
}

func (s *shell) handleAddBook() {
	title, ok := s.readLine("Title: ")
	if !ok {
		return
	}
	author, ok := s.readLine("Author: ")
	if !ok {
		return
	}
	isbn, ok := s.readLine("ISBN: ")
	if !ok {
		return
	}
	b, err := s.cat.AddBook(title, author, isbn)
	if err != nil {
		s.printf("Failed to add book: %v\n", err)
		return
	}
	s.printf("Added book ID %d.\n", b.ID)
}

func (s *shell) handleAddMember() {
	name, ok := s.readLine("Name: ")
	if !ok {
		return
	}
	email, ok := s.readLine("Email: ")
	if !ok {
		return
	}
	m, err := s.cat.AddMember(name, email)
	if err != nil {
		s.printf("Failed to add member: %v\n", err)
		return
	}
	s.printf("Added member '%s' with ID %d\n", m.Name, m.ID)
}

func (s *shell) readLoan() (memberID, bookID int64, ok bool) {
	if memberID, ok = s.readID("Member ID: "); !ok {
		return 0, 0, false
	}
	if bookID, ok = s.readID("Book ID: "); !ok {
		return 0, 0, false
	}
	return memberID, bookID, true
}

func (s *shell) handleBorrow() {
	memberID, bookID, ok := s.readLoan()
	if !ok {
		return
	}
	err := s.cat.Borrow(memberID, bookID)
	switch {
	case err == nil:
		s.printf("Book %d borrowed by member %d.\n", bookID, memberID)
	case errors.Is(err, library.ErrNotFound):
		s.printf("Member or book not found.\n")
	case errors.Is(err, library.ErrUnavailable):
		s.printf("Book %d is already borrowed.\n", bookID)
	case errors.Is(err, library.ErrLimitReached):
		s.printf("Member %d already has %d books.\n", memberID, library.MaxBorrowedBooks)
	default:
		s.printf("Failed to borrow book: %v\n", err)
	}
}

func (s *shell) handleReturn() {
	memberID, bookID, ok := s.readLoan()
	if !ok {
		return
	}
	returned, err := s.cat.Return(memberID, bookID)
	switch {
	case err != nil:
		s.printf("Failed to return book: %v\n", err)
	case returned:
		s.printf("Book %d returned.\n", bookID)
	default:
		s.printf("Member %d does not have book %d.\n", memberID, bookID)
	}
}

func (s *shell) handleSearchBooks() {
	query, ok := s.readLine("Query: ")
	if !ok {
		return
	}
	books := s.cat.SearchBooks(query)
	if len(books) == 0 {
		s.printf("No books found matching '%s'.\n", query)
		return
	}
	s.printf("Found %d book(s) matching '%s':\n", len(books), query)
	printBookTable(s.out, books)
}

func (s *shell) handleSave() bool {
	if err := s.cat.Save(s.dataFile); err != nil {
		s.printf("Failed to save library: %v\n", err)
		return false
	}
	s.printf("Library saved to %s.\n", s.dataFile)
	return true
}
