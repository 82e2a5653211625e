package testapp

import "html/template"

var pages = template.Must(template.New("pages").Parse(`
{{define "head"}}<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}} - Student Portal</title></head>
<body>
<header><strong>Student Portal</strong>
{{if .User}}<form method="post" action="/signout" style="display:inline"><button type="submit">Sign Out</button></form>{{end}}
</header>
<main>
{{if .Error}}<p role="alert" class="error">{{.Error}}</p>{{end}}
{{end}}

{{define "foot"}}</main>
</body>
</html>
{{end}}

{{define "signup"}}{{template "head" .}}
<h1>Create Account</h1>
<form method="post" action="/signup">
  <label for="name">Full Name</label>
  <input id="name" name="name" type="text" value="{{.Name}}" required>
  <label for="email">Email Address</label>
  <input id="email" name="email" type="email" value="{{.Email}}" required>
  <label for="password">Password</label>
  <input id="password" name="password" type="password" required>
  <button type="submit">Sign Up</button>
</form>
<p>Already registered? <a href="/signin">Sign in</a></p>
{{template "foot" .}}{{end}}

{{define "registered"}}{{template "head" .}}
<h1>Registration Successful!</h1>
<p>Your application has been submitted and is awaiting administrator approval.</p>
<p><a href="/signin">Continue to sign in</a></p>
{{template "foot" .}}{{end}}

{{define "signin"}}{{template "head" .}}
<h1>Welcome Back</h1>
<form method="post" action="/signin">
  <label for="email">Email Address</label>
  <input id="email" name="email" type="email" value="{{.Email}}" required>
  <label for="password">Password</label>
  <input id="password" name="password" type="password" required>
  <button type="submit">Sign In</button>
</form>
<p>New student? <a href="/signup">Create an account</a></p>
{{template "foot" .}}{{end}}

{{define "admin"}}{{template "head" .}}
<h1>Admin Dashboard</h1>
<h2>Student Approval</h2>
{{if .Students}}
<table>
  <thead><tr><th>Name</th><th>Email</th><th>Registered</th><th>Actions</th></tr></thead>
  <tbody>
  {{range .Students}}
  <tr>
    <td>{{.Name}}</td>
    <td>{{.Email}}</td>
    <td>{{.CreatedAt.Format "2006-01-02 15:04"}}</td>
    <td>
      <form method="post" action="/admin/students/{{.ID}}/approve" style="display:inline"><button type="submit">Approve</button></form>
      <form method="post" action="/admin/students/{{.ID}}/reject" style="display:inline" onsubmit="var r = window.prompt('Please provide a reason for rejection (optional):'); if (r === null) { return false; } this.reason.value = r; return true;">
        <input type="hidden" name="reason" value="">
        <button type="submit">Reject</button>
      </form>
    </td>
  </tr>
  {{end}}
  </tbody>
</table>
{{else}}
<p>No pending students found.</p>
{{end}}
{{template "foot" .}}{{end}}

{{define "student"}}{{template "head" .}}
<h1>Student Dashboard</h1>
<p>Signed in as {{.User.Name}} ({{.User.Email}})</p>
{{if eq .User.Status "approved"}}
<h2>Application Approved!</h2>
<p>Welcome aboard. You now have full access to the portal.</p>
{{else if eq .User.Status "rejected"}}
<h2>Application Rejected</h2>
{{if .User.Reason}}<p>Reason: {{.User.Reason}}</p>{{end}}
{{else}}
<h2>Application Pending</h2>
<p>An administrator will review your registration shortly.</p>
{{end}}
{{template "foot" .}}{{end}}
`))

type pageData struct {
	Title    string
	Error    string
	Name     string
	Email    string
	User     *Account
	Students []Account
}
