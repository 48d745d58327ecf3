// Package cli is the interactive terminal front-end. It owns every re-prompt
// loop; the store only ever sees complete, single-shot calls.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"studentrecords/internal/export"
	"studentrecords/internal/model"
	"studentrecords/internal/service"
	"studentrecords/internal/storage"
)

const rule = "=================================================="

type Menu struct {
	svc    *service.StudentService
	in     *bufio.Scanner
	out    io.Writer
	theme  theme
	logger *slog.Logger
	now    func() time.Time
}

func New(svc *service.StudentService, in io.Reader, out io.Writer, logger *slog.Logger) *Menu {
	if logger == nil {
		logger = slog.Default()
	}
	return &Menu{
		svc:    svc,
		in:     bufio.NewScanner(in),
		out:    out,
		theme:  newTheme(out),
		logger: logger,
		now:    time.Now,
	}
}

// Run shows the main menu until the user chooses to exit or input ends.
// Either way the store is saved before Run returns.
func (m *Menu) Run() error {
	m.println(m.theme.title.Render("Welcome to Student Management System!"))

	for {
		m.showMenu()
		choice, err := m.prompt("Enter your choice (1-8): ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				m.println("")
				m.println("Input closed. Saving data before exit...")
				return m.save()
			}
			return err
		}

		switch choice {
		case "1":
			err = m.addStudent()
		case "2":
			err = m.viewStudents()
		case "3":
			err = m.searchStudents()
		case "4":
			err = m.updateStudent()
		case "5":
			err = m.deleteStudent()
		case "6":
			m.showStatistics()
		case "7":
			err = m.exportStudents()
		case "8":
			if err := m.save(); err != nil {
				return err
			}
			m.println("Thank you for using Student Management System!")
			return nil
		default:
			m.fail("Invalid choice! Please enter a number between 1-8.")
		}

		if errors.Is(err, io.EOF) {
			m.println("")
			m.println("Input closed. Saving data before exit...")
			return m.save()
		}
		if err != nil {
			return err
		}
	}
}

func (m *Menu) showMenu() {
	m.println("")
	m.println(rule)
	m.println(m.theme.title.Render("STUDENT MANAGEMENT SYSTEM"))
	m.println(rule)
	m.println("1. Add Student Record")
	m.println("2. View All Records")
	m.println("3. Search Student Record")
	m.println("4. Update Student Record")
	m.println("5. Delete Student Record")
	m.println("6. System Statistics")
	m.println("7. Export Records")
	m.println("8. Save & Exit")
	m.println(rule)
}

func (m *Menu) heading(title string) {
	m.println("")
	m.println(rule)
	m.println(m.theme.title.Render(title))
	m.println(rule)
}

func (m *Menu) addStudent() error {
	m.heading("ADD NEW STUDENT")

	var in model.StudentInput
	var err error

	for {
		if in.RollNumber, err = m.prompt("Enter Roll Number: "); err != nil {
			return err
		}
		if in.RollNumber == "" {
			m.fail("Roll number cannot be empty!")
			continue
		}
		if err := model.CheckRollNumber(in.RollNumber); err != nil {
			m.fail("Roll number " + err.Error() + "!")
			continue
		}
		if !m.svc.ValidateRollNumber(in.RollNumber) {
			m.fail("Roll number already exists! Please enter a unique roll number.")
			continue
		}
		break
	}

	for {
		if in.Name, err = m.prompt("Enter Student Name: "); err != nil {
			return err
		}
		if service.ValidateName(in.Name) {
			break
		}
		m.fail(fmt.Sprintf("Name must be at least %d characters long!", model.MinNameLength))
	}

	for {
		if in.Age, err = m.prompt("Enter Age: "); err != nil {
			return err
		}
		if _, err := service.ValidateAge(in.Age); err == nil {
			break
		}
		m.fail(fmt.Sprintf("Please enter a valid age (%d-%d)!", model.MinAge, model.MaxAge))
	}

	for {
		if in.Marks, err = m.prompt("Enter Marks (0-100): "); err != nil {
			return err
		}
		if _, err := service.ValidateMarks(in.Marks); err == nil {
			break
		}
		m.fail("Please enter valid marks (0-100)!")
	}

	st, err := m.svc.Add(in)
	switch {
	case errors.Is(err, service.ErrIO):
		m.warnNotSaved(err)
	case err != nil:
		m.fail(err.Error())
		return nil
	}
	m.ok(fmt.Sprintf("Student '%s' added successfully!", st.Name))
	return nil
}

func (m *Menu) viewStudents() error {
	m.heading("ALL STUDENT RECORDS")
	if m.svc.Len() == 0 {
		m.println("No student records found!")
		return nil
	}

	m.println("Sort options:")
	m.println("1. By Roll Number")
	m.println("2. By Name")
	m.println("3. By Marks (Highest first)")
	m.println("4. No sorting")

	keys := map[string]service.SortKey{
		"1": service.SortByRoll,
		"2": service.SortByName,
		"3": service.SortByMarksDesc,
		"4": service.SortNone,
	}
	var key service.SortKey
	for {
		choice, err := m.prompt("Choose sorting option (1-4): ")
		if err != nil {
			return err
		}
		var ok bool
		if key, ok = keys[choice]; ok {
			break
		}
		m.fail("Please enter a valid option (1-4)!")
	}

	students := m.svc.ListAll(key)
	m.printTable(students)
	m.println(fmt.Sprintf("Total Students: %d", len(students)))
	return nil
}

func (m *Menu) searchStudents() error {
	m.heading("SEARCH STUDENT")
	if m.svc.Len() == 0 {
		m.println("No student records found!")
		return nil
	}

	m.println("Search by:")
	m.println("1. Roll Number")
	m.println("2. Name")

	var mode service.SearchMode
	for {
		choice, err := m.prompt("Choose search option (1-2): ")
		if err != nil {
			return err
		}
		if choice == "1" || choice == "2" {
			mode = service.SearchByRoll
			if choice == "2" {
				mode = service.SearchByName
			}
			break
		}
		m.fail("Please enter 1 or 2!")
	}

	var term string
	for {
		var err error
		if term, err = m.prompt("Enter search term: "); err != nil {
			return err
		}
		if term != "" {
			break
		}
		m.fail("Search term cannot be empty!")
	}

	found := m.svc.Search(term, mode)
	if len(found) == 0 {
		what := "name"
		if mode == service.SearchByRoll {
			what = "roll number"
		}
		m.fail(fmt.Sprintf("No student found with the given %s!", what))
		return nil
	}
	m.ok(fmt.Sprintf("Found %d student(s):", len(found)))
	m.printTable(found)
	return nil
}

// lookup asks for a roll number and returns the matching record, or ok=false
// after telling the user why not.
func (m *Menu) lookup(label string) (st model.Student, ok bool, err error) {
	if m.svc.Len() == 0 {
		m.println("No student records found!")
		return st, false, nil
	}
	roll, err := m.prompt(label)
	if err != nil {
		return st, false, err
	}
	if roll == "" {
		m.fail("Roll number cannot be empty!")
		return st, false, nil
	}
	st, err = m.svc.FindByRoll(roll)
	if err != nil {
		m.fail(fmt.Sprintf("No student found with roll number '%s'!", roll))
		return st, false, nil
	}
	return st, true, nil
}

func (m *Menu) updateStudent() error {
	m.heading("UPDATE STUDENT RECORD")
	current, ok, err := m.lookup("Enter Roll Number of student to update: ")
	if err != nil || !ok {
		return err
	}

	m.println(fmt.Sprintf("Current details for Roll Number %s:", current.RollNumber))
	m.printStudent(current)
	m.println(m.theme.muted.Render("Leave a field blank to keep its current value."))

	var u model.StudentUpdate

	for {
		name, err := m.prompt(fmt.Sprintf("Enter new name (current: %s): ", current.Name))
		if err != nil {
			return err
		}
		if name == "" {
			break
		}
		if service.ValidateName(name) {
			u.Name = &name
			break
		}
		m.fail(fmt.Sprintf("Name must be at least %d characters long!", model.MinNameLength))
	}

	for {
		age, err := m.prompt(fmt.Sprintf("Enter new age (current: %d): ", current.Age))
		if err != nil {
			return err
		}
		if age == "" {
			break
		}
		if _, err := service.ValidateAge(age); err == nil {
			u.Age = &age
			break
		}
		m.fail(fmt.Sprintf("Please enter a valid age (%d-%d)!", model.MinAge, model.MaxAge))
	}

	for {
		marks, err := m.prompt(fmt.Sprintf("Enter new marks (current: %s): ", storage.FormatMarks(current.Marks)))
		if err != nil {
			return err
		}
		if marks == "" {
			break
		}
		if _, err := service.ValidateMarks(marks); err == nil {
			u.Marks = &marks
			break
		}
		m.fail("Please enter valid marks (0-100)!")
	}

	if u.Empty() {
		m.println("No changes were made.")
		return nil
	}

	_, err = m.svc.Update(current.RollNumber, u)
	switch {
	case errors.Is(err, service.ErrIO):
		m.warnNotSaved(err)
	case err != nil:
		m.fail(err.Error())
		return nil
	}
	m.ok("Student record updated successfully!")
	return nil
}

func (m *Menu) deleteStudent() error {
	m.heading("DELETE STUDENT RECORD")
	target, ok, err := m.lookup("Enter Roll Number of student to delete: ")
	if err != nil || !ok {
		return err
	}

	m.println(m.theme.warning.Render("Are you sure you want to delete this student?"))
	m.printStudent(target)

	for {
		confirm, err := m.prompt("Confirm deletion (y/n): ")
		if err != nil {
			return err
		}
		switch strings.ToLower(confirm) {
		case "y", "yes":
			_, err := m.svc.Delete(target.RollNumber)
			switch {
			case errors.Is(err, service.ErrIO):
				m.warnNotSaved(err)
			case err != nil:
				m.fail(err.Error())
				return nil
			}
			m.ok(fmt.Sprintf("Student '%s' deleted successfully!", target.Name))
			return nil
		case "n", "no":
			m.println("Deletion cancelled.")
			return nil
		}
		m.fail("Please enter 'y' for yes or 'n' for no!")
	}
}

func (m *Menu) showStatistics() {
	m.heading("SYSTEM STATISTICS")
	stats, err := m.svc.ComputeStatistics()
	if err != nil {
		m.println("No student records found!")
		return
	}

	m.println(fmt.Sprintf("Total Students: %d", stats.Count))
	m.println(fmt.Sprintf("Average Marks: %.2f", stats.MeanMarks))
	m.println(fmt.Sprintf("Highest Marks: %s", storage.FormatMarks(stats.MaxMarks)))
	m.println(fmt.Sprintf("Lowest Marks: %s", storage.FormatMarks(stats.MinMarks)))
	m.println(fmt.Sprintf("Average Age: %.1f", stats.MeanAge))

	m.println("")
	m.println(m.theme.title.Render("Grade Distribution:"))
	for _, g := range model.Grades() {
		if n := stats.GradeHistogram[g]; n > 0 {
			m.println(fmt.Sprintf("%s: %d students (%.1f%%)", g, n, stats.GradePercent(g)))
		}
	}

	m.println("")
	m.println(m.theme.title.Render("Marks Distribution:"))
	width := model.MaxMarks / service.MarksBuckets
	for i, n := range stats.MarksHistogram {
		label := fmt.Sprintf("%3.0f-%-3.0f", float64(i)*width, float64(i+1)*width)
		m.println(fmt.Sprintf("%s | %s %d", label, m.theme.bar.Render(strings.Repeat("#", n)), n))
	}
}

func (m *Menu) exportStudents() error {
	m.heading("EXPORT RECORDS")
	if m.svc.Len() == 0 {
		m.println("No student records found!")
		return nil
	}

	names := make([]string, 0, len(export.Formats()))
	for _, f := range export.Formats() {
		names = append(names, string(f))
	}

	var format export.Format
	for {
		choice, err := m.prompt(fmt.Sprintf("Format (%s): ", strings.Join(names, "/")))
		if err != nil {
			return err
		}
		if format, err = export.ParseFormat(choice); err == nil {
			break
		}
		m.fail("Unknown format!")
	}

	now := m.now()
	path, err := m.prompt(fmt.Sprintf("Output file [%s]: ", export.FileName(format, now)))
	if err != nil {
		return err
	}
	if path == "" {
		path = export.FileName(format, now)
	}

	if err := writeExport(path, format, m.svc.ListAll(service.SortNone), now); err != nil {
		m.logger.Error("export failed", slog.String("path", path), slog.Any("error", err))
		m.fail(fmt.Sprintf("Export failed: %v", err))
		return nil
	}
	m.ok(fmt.Sprintf("Exported %d student(s) to %s", m.svc.Len(), path))
	return nil
}

// writeExport renders students into a new file at path.
func writeExport(path string, format export.Format, students []model.Student, now time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.Write(f, format, students, now); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (m *Menu) save() error {
	if err := m.svc.Persist(); err != nil {
		m.fail(fmt.Sprintf("Error saving data: %v", err))
		return err
	}
	m.ok(fmt.Sprintf("Data saved successfully to %s", m.svc.Location()))
	return nil
}

func (m *Menu) printTable(students []model.Student) {
	rows := make([][]string, 0, len(students))
	for _, s := range students {
		rows = append(rows, []string{
			s.RollNumber,
			s.Name,
			strconv.Itoa(s.Age),
			storage.FormatMarks(s.Marks),
			string(s.Grade()),
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(m.theme.muted).
		Headers("Roll No", "Name", "Age", "Marks", "Grade").
		Rows(rows...)
	m.println(t.String())
}

func (m *Menu) printStudent(s model.Student) {
	m.println(fmt.Sprintf("Roll Number: %s", s.RollNumber))
	m.println(fmt.Sprintf("Name: %s", s.Name))
	m.println(fmt.Sprintf("Age: %d", s.Age))
	m.println(fmt.Sprintf("Marks: %s", storage.FormatMarks(s.Marks)))
	m.println(fmt.Sprintf("Grade: %s", s.Grade()))
}

// prompt writes label and reads one trimmed line. It returns io.EOF once
// input is exhausted.
func (m *Menu) prompt(label string) (string, error) {
	fmt.Fprint(m.out, label)
	if !m.in.Scan() {
		if err := m.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(m.in.Text()), nil
}

func (m *Menu) println(s string) { fmt.Fprintln(m.out, s) }

func (m *Menu) ok(s string) { m.println(m.theme.success.Render(s)) }

func (m *Menu) fail(s string) { m.println(m.theme.failure.Render(s)) }

func (m *Menu) warnNotSaved(err error) {
	m.logger.Warn("change not persisted", slog.Any("error", err))
	m.println(m.theme.warning.Render("Warning: the change is kept in memory but could not be saved: " + err.Error()))
}
