// Package fakeplatform serves an in-memory course platform over httptest for
// adapter and end-to-end tests.
package fakeplatform

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"coursedl/internal/platform/config"
	"coursedl/internal/platform/websession"
)

type Link struct {
	Href  string
	Title string
}

type Lecture struct {
	Name      string
	Resources []Link
}

type Section struct {
	Name     string
	Lectures []Lecture
}

type Course struct {
	ID        string
	Sections  []Section
	Files     map[string][]byte
	HonorCode bool
	About     string
}

type failure struct {
	remaining int
	status    int
}

type Server struct {
	*httptest.Server

	mu           sync.Mutex
	users        map[string]string
	courses      map[string]*Course
	tokens       map[string]string
	failures     map[string]*failure
	resourceHits map[string]int
	listingHits  int
	loginHits    int
	nextToken    int
}

func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		users:        map[string]string{},
		courses:      map[string]*Course{},
		tokens:       map[string]string{},
		failures:     map[string]*failure{},
		resourceHits: map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.route))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) Endpoints() config.Endpoints {
	return config.Endpoints{
		Course:   s.URL + "/class/{course}",
		Class:    s.URL + "/class/{course}/class",
		Lectures: s.URL + "/class/{course}/lecture/index",
		Auth:     s.URL + "/class/{course}/auth",
		Login:    s.URL + "/accounts/login",
		About:    s.URL + "/about/{course}",
	}
}

func (s *Server) AddUser(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = password
}

func (s *Server) AddCourse(c Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := c
	s.courses[c.ID] = &copied
}

// FileURL is the download URL for a file registered on a course.
func (s *Server) FileURL(courseID, name string) string {
	return s.URL + "/cdn/" + courseID + "/" + name
}

// FailNext makes the next n requests for the named file answer with status.
func (s *Server) FailNext(courseID, name string, n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[courseID+"/"+name] = &failure{remaining: n, status: status}
}

// NewSession issues a login token for email directly and returns a session
// holding the cookies a real login would have produced.
func (s *Server) NewSession(t testing.TB, courseID, email string) *websession.Session {
	t.Helper()
	return websession.New(courseID, email, s.NewJar(t, courseID, email))
}

// NewJar is NewSession's cookie jar, for callers that persist it.
func (s *Server) NewJar(t testing.TB, courseID, email string) *websession.Jar {
	t.Helper()
	s.mu.Lock()
	s.nextToken++
	token := fmt.Sprintf("cauth-%d", s.nextToken)
	s.tokens[token] = email
	s.mu.Unlock()

	jar, err := websession.NewJar()
	if err != nil {
		t.Fatalf("new jar: %v", err)
	}
	root, err := url.Parse(s.URL + "/")
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	jar.SetCookies(root, []*http.Cookie{{Name: "CAUTH", Value: token, Path: "/"}})
	course, _ := url.Parse(s.URL + "/class/" + courseID + "/auth")
	jar.SetCookies(course, []*http.Cookie{{Name: "csrf_token", Value: "class-" + courseID, Path: "/class/" + courseID}})
	return jar
}

// ExpireSessions invalidates every issued login token.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = map[string]string{}
}

func (s *Server) ResourceHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.resourceHits {
		total += n
	}
	return total
}

func (s *Server) FileHits(courseID, name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resourceHits[courseID+"/"+name]
}

func (s *Server) ListingHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listingHits
}

func (s *Server) LoginHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginHits
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 2 && parts[0] == "accounts" && parts[1] == "login" && r.Method == http.MethodPost:
		s.login(w, r)
	case len(parts) == 2 && parts[0] == "class":
		s.coursePage(w, parts[1])
	case len(parts) == 3 && parts[0] == "class" && parts[2] == "class":
		s.classPage(w, r, parts[1])
	case len(parts) == 3 && parts[0] == "class" && parts[2] == "auth":
		s.authRedirect(w, r, parts[1])
	case len(parts) == 4 && parts[0] == "class" && parts[2] == "lecture" && parts[3] == "index":
		s.lectures(w, r, parts[1])
	case len(parts) >= 3 && parts[0] == "cdn":
		s.file(w, r, parts[1], strings.Join(parts[2:], "/"))
	case len(parts) == 2 && parts[0] == "about":
		s.about(w, parts[1])
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) course(id string) (*Course, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[id]
	return c, ok
}

func (s *Server) loggedIn(r *http.Request) bool {
	c, err := r.Cookie("CAUTH")
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tokens[c.Value]
	return ok
}

func (s *Server) hasCourseCookie(r *http.Request) bool {
	c, err := r.Cookie("csrf_token")
	return err == nil && c.Value != ""
}

func (s *Server) coursePage(w http.ResponseWriter, id string) {
	if _, ok := s.course(id); !ok {
		http.Error(w, "no such course", http.StatusNotFound)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "csrf_token", Value: "csrf-" + id, Path: "/"})
	_, _ = fmt.Fprintln(w, "<html><body>course home</body></html>")
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.loginHits++
	s.mu.Unlock()

	header := r.Header.Get("X-CSRFToken")
	cookie, err := r.Cookie("csrftoken")
	if header == "" || err != nil || cookie.Value != header {
		http.Error(w, "csrf mismatch", http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	email, password := r.PostForm.Get("email"), r.PostForm.Get("password")
	s.mu.Lock()
	want, ok := s.users[email]
	if !ok || want != password {
		s.mu.Unlock()
		http.Error(w, "invalid email or password", http.StatusUnauthorized)
		return
	}
	s.nextToken++
	token := fmt.Sprintf("cauth-%d", s.nextToken)
	s.tokens[token] = email
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: "CAUTH", Value: token, Path: "/"})
	_, _ = fmt.Fprintln(w, `{"ok":true}`)
}

func (s *Server) authRedirect(w http.ResponseWriter, r *http.Request, id string) {
	if !s.loggedIn(r) {
		http.Error(w, "not logged in", http.StatusUnauthorized)
		return
	}
	if _, ok := s.course(id); !ok {
		http.NotFound(w, r)
		return
	}
	path := "/class/" + id
	http.SetCookie(w, &http.Cookie{Name: "csrf_token", Value: "class-" + id, Path: path})
	http.SetCookie(w, &http.Cookie{Name: "session", Value: "sess-" + id, Path: path})
	http.Redirect(w, r, path+"/class", http.StatusFound)
}

func (s *Server) classPage(w http.ResponseWriter, r *http.Request, id string) {
	if !s.loggedIn(r) || !s.hasCourseCookie(r) {
		http.Redirect(w, r, "/accounts/signin", http.StatusFound)
		return
	}
	if _, ok := s.course(id); !ok {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) lectures(w http.ResponseWriter, r *http.Request, id string) {
	s.mu.Lock()
	s.listingHits++
	s.mu.Unlock()

	if !s.loggedIn(r) {
		http.Redirect(w, r, "/accounts/signin", http.StatusFound)
		return
	}
	c, ok := s.course(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if c.HonorCode {
		_, _ = fmt.Fprintln(w, "<html><body><h2>Please accept the Honor Code</h2></body></html>")
		return
	}
	_, _ = fmt.Fprint(w, LecturesPage(c.Sections))
}

func (s *Server) file(w http.ResponseWriter, r *http.Request, id, name string) {
	key := id + "/" + name
	s.mu.Lock()
	s.resourceHits[key]++
	f := s.failures[key]
	var status int
	if f != nil && f.remaining > 0 {
		f.remaining--
		status = f.status
	}
	s.mu.Unlock()

	if status != 0 {
		http.Error(w, "injected failure", status)
		return
	}
	if !s.loggedIn(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	c, ok := s.course(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	body, ok := c.Files[name]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Length", fmt.Sprint(len(body)))
	_, _ = w.Write(body)
}

func (s *Server) about(w http.ResponseWriter, id string) {
	c, ok := s.course(id)
	if !ok || c.About == "" {
		http.Error(w, "no about", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprint(w, c.About)
}

// LecturesPage renders sections the way the platform's lecture index does.
func LecturesPage(sections []Section) string {
	var b strings.Builder
	b.WriteString("<html><body><div class=\"course-item-list\">\n")
	for _, section := range sections {
		fmt.Fprintf(&b, "<div class=\"course-item-list-header\"><h3>&nbsp;%s</h3></div>\n", html.EscapeString(section.Name))
		b.WriteString("<ul class=\"course-item-list-section-list\">\n")
		for _, lecture := range section.Lectures {
			fmt.Fprintf(&b, "<li><a class=\"lecture-link\" href=\"#\">%s</a>\n", html.EscapeString(lecture.Name))
			b.WriteString("<div class=\"course-lecture-item-resource\">\n")
			for _, link := range lecture.Resources {
				fmt.Fprintf(&b, "<a target=\"_new\" href=\"%s\" title=\"%s\"><i></i></a>\n", html.EscapeString(link.Href), html.EscapeString(link.Title))
			}
			b.WriteString("</div></li>\n")
		}
		b.WriteString("</ul>\n")
	}
	b.WriteString("</div></body></html>\n")
	return b.String()
}
